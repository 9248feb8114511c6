package inspirehub

import (
	"context"
	"fmt"
	"iter"
	"net/http"
	"path"

	"github.com/google/go-querystring/query"
)

// Posts retrieves one page of the main feed.
func (c *Client) Posts(ctx context.Context, params PageParams) ([]Post, error) {
	return c.listPosts(ctx, "/posts", params)
}

// FeedPosts returns a paginator over the main feed.
func (c *Client) FeedPosts(pageSize int) *Feed[Post] {
	return NewFeed(pageSize, c.Posts)
}

// PostsIter returns an iterator over every post of the main feed.
func (c *Client) PostsIter(ctx context.Context, pageSize int) iter.Seq2[Post, error] {
	return c.FeedPosts(pageSize).All(ctx)
}

// PostsBySender retrieves one page of the posts written by senderID.
func (c *Client) PostsBySender(ctx context.Context, senderID string, params PageParams) ([]Post, error) {
	id, err := pathSegment(senderID)
	if err != nil {
		return nil, err
	}

	return c.listPosts(ctx, "/posts/sender/"+id, params)
}

// SenderFeed returns a paginator over the posts written by senderID.
func (c *Client) SenderFeed(senderID string, pageSize int) *Feed[Post] {
	return NewFeed(pageSize, func(ctx context.Context, p PageParams) ([]Post, error) {
		return c.PostsBySender(ctx, senderID, p)
	})
}

func (c *Client) listPosts(ctx context.Context, endpoint string, params PageParams) ([]Post, error) {
	v, err := query.Values(params)
	if err != nil {
		return nil, err
	}

	var posts []Post
	if _, err := c.Call(ctx, &Request{
		Method: http.MethodGet,
		Path:   endpoint,
		Query:  v,
	}, &posts); err != nil {
		return nil, err
	}

	return posts, nil
}

// Post retrieves a single post.
func (c *Client) Post(ctx context.Context, postID string) (*Post, error) {
	id, err := pathSegment(postID)
	if err != nil {
		return nil, err
	}

	var post Post
	if _, err := c.Call(ctx, &Request{
		Method: http.MethodGet,
		Path:   "/posts/" + id,
	}, &post); err != nil {
		return nil, err
	}

	return &post, nil
}

// NewPost holds the fields of a post to create.
type NewPost struct {
	Title   string `json:"title" validate:"required,max=200"`
	Content string `json:"content"`
	// Image is uploaded before the post is created.
	Image    *File  `json:"-"`
	ImageURL string `json:"imageUrl"`
}

type uploadResponse struct {
	URL string `json:"url"`
}

// CreatePost uploads the optional image and creates the post.
func (c *Client) CreatePost(ctx context.Context, in NewPost) (*Post, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}

	if in.Image != nil {
		imageURL, err := c.uploadPostImage(ctx, in.Image)
		if err != nil {
			return nil, fmt.Errorf("upload image: %w", err)
		}
		in.ImageURL = imageURL
	}

	var post Post
	if _, err := c.Call(ctx, &Request{
		Method: http.MethodPost,
		Path:   "/posts",
		Body:   in,
	}, &post); err != nil {
		return nil, fmt.Errorf("create post: %w", err)
	}

	return &post, nil
}

// uploadPostImage stores the image and returns its path below /uploads.
func (c *Client) uploadPostImage(ctx context.Context, f *File) (string, error) {
	var out uploadResponse
	if _, err := c.Call(ctx, &Request{
		Method: http.MethodPost,
		Path:   "/uploads/post-image",
		Body:   NewMultipart().SetFile("file", f),
	}, &out); err != nil {
		return "", err
	}
	if out.URL == "" {
		return "", fmt.Errorf("upload response has no url")
	}

	return "/uploads/" + path.Base(out.URL), nil
}

// PostUpdate holds the editable post fields. Empty fields are left unchanged.
type PostUpdate struct {
	Title   string `json:"title,omitempty" validate:"max=200"`
	Content string `json:"content,omitempty"`
	Image   *File  `json:"-"`
}

// UpdatePost edits a post. The body is multipart when a new image is
// attached, JSON otherwise.
func (c *Client) UpdatePost(ctx context.Context, postID string, in PostUpdate) (*Post, error) {
	id, err := pathSegment(postID)
	if err != nil {
		return nil, err
	}
	if err := validateInput(in); err != nil {
		return nil, err
	}

	var body any = in
	if in.Image != nil {
		body = NewMultipart().
			SetField("title", in.Title).
			SetField("content", in.Content).
			SetFile("image", in.Image)
	}

	var post Post
	if _, err := c.Call(ctx, &Request{
		Method: http.MethodPut,
		Path:   "/posts/" + id,
		Body:   body,
	}, &post); err != nil {
		return nil, fmt.Errorf("update post: %w", err)
	}

	return &post, nil
}

// DeletePost removes a post.
func (c *Client) DeletePost(ctx context.Context, postID string) error {
	id, err := pathSegment(postID)
	if err != nil {
		return err
	}

	_, err = c.Call(ctx, &Request{
		Method: http.MethodDelete,
		Path:   "/posts/" + id,
	}, nil)
	return err
}

// ToggleLike likes the post, or removes the like if already given.
func (c *Client) ToggleLike(ctx context.Context, postID string) (*LikeResult, error) {
	id, err := pathSegment(postID)
	if err != nil {
		return nil, err
	}

	var out LikeResult
	if _, err := c.Call(ctx, &Request{
		Method: http.MethodPut,
		Path:   "/posts/" + id + "/like",
		Body:   struct{}{},
	}, &out); err != nil {
		return nil, err
	}

	return &out, nil
}
