package inspirehub

import (
	"context"
	"net/http"
)

type commentBody struct {
	Content string `json:"content" validate:"required,max=1000"`
	PostID  string `json:"postId,omitempty"`
}

// Comments retrieves the comments on a post.
func (c *Client) Comments(ctx context.Context, postID string) ([]Comment, error) {
	id, err := pathSegment(postID)
	if err != nil {
		return nil, err
	}

	var comments []Comment
	if _, err := c.Call(ctx, &Request{
		Method: http.MethodGet,
		Path:   "/comments/post/" + id,
	}, &comments); err != nil {
		return nil, err
	}

	return comments, nil
}

// CreateComment adds a comment to a post.
func (c *Client) CreateComment(ctx context.Context, postID, content string) (*Comment, error) {
	body := commentBody{Content: content, PostID: postID}
	if err := validateInput(body); err != nil {
		return nil, err
	}

	var comment Comment
	if _, err := c.Call(ctx, &Request{
		Method: http.MethodPost,
		Path:   "/comments",
		Body:   body,
	}, &comment); err != nil {
		return nil, err
	}

	// The backend answers with the bare sender id.
	if comment.Sender.Username == "" {
		if cred, ok := c.session.Credential(); ok && cred.SubjectID == comment.Sender.ID {
			comment.Sender.Username = cred.Username
			comment.Sender.ProfilePicture = cred.ProfilePicture
		}
	}

	return &comment, nil
}

// UpdateComment replaces the content of a comment.
func (c *Client) UpdateComment(ctx context.Context, commentID, content string) (*Comment, error) {
	id, err := pathSegment(commentID)
	if err != nil {
		return nil, err
	}

	body := commentBody{Content: content}
	if err := validateInput(body); err != nil {
		return nil, err
	}

	var comment Comment
	if _, err := c.Call(ctx, &Request{
		Method: http.MethodPut,
		Path:   "/comments/" + id,
		Body:   body,
	}, &comment); err != nil {
		return nil, err
	}

	return &comment, nil
}

// DeleteComment removes a comment.
func (c *Client) DeleteComment(ctx context.Context, commentID string) error {
	id, err := pathSegment(commentID)
	if err != nil {
		return err
	}

	_, err = c.Call(ctx, &Request{
		Method: http.MethodDelete,
		Path:   "/comments/" + id,
	}, nil)
	return err
}
