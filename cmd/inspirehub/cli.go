package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/gravitational/trace"
	"github.com/olekukonko/tablewriter"
	log "github.com/sirupsen/logrus"

	"thde.io/inspirehub"
	"thde.io/inspirehub/config"
)

// CLI represents command structure
type CLI struct {
	// Config is a path to the config file
	Config string `help:"Path to a config file (yaml, toml or json)" type:"path" env:"INSPIREHUB_CONFIG"`

	// Debug enables debug logging and prints error traces
	Debug bool `help:"Debug logging" short:"d"`

	Login    LoginCmd    `cmd:"" help:"Log in and store the session"`
	Logout   LogoutCmd   `cmd:"" help:"End the stored session"`
	Register RegisterCmd `cmd:"" help:"Create an account"`
	Whoami   WhoamiCmd   `cmd:"" help:"Show the logged in user"`
	Feed     FeedCmd     `cmd:"" help:"Page through the main feed"`
	Mine     MineCmd     `cmd:"" help:"List your own posts"`
	Post     PostCmd     `cmd:"" help:"Create a post"`
	Delete   DeleteCmd   `cmd:"" help:"Delete a post"`
	Like     LikeCmd     `cmd:"" help:"Like or unlike a post"`
	Comment  CommentCmd  `cmd:"" help:"Comment on a post"`
	Comments CommentsCmd `cmd:"" help:"List the comments on a post"`
	Quote    QuoteCmd    `cmd:"" help:"Show the quote of the day"`
}

// app is bound into every command's Run method
type app struct {
	ctx    context.Context
	client *inspirehub.Client
	cfg    *config.Config
	out    io.Writer
	log    log.FieldLogger
}

// sessionError turns an ended session into a message asking to log in.
func sessionError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, inspirehub.ErrSessionEnded):
		return trace.AccessDenied("session ended, run `inspirehub login` again")
	case errors.Is(err, inspirehub.ErrUnauthorized):
		return trace.AccessDenied("not logged in, run `inspirehub login`")
	case errors.Is(err, inspirehub.ErrValidation):
		return trace.BadParameter("%v", err)
	}
	return trace.Wrap(err)
}

// loginError reports rejected credentials. A 401 from the login endpoint
// means bad input, not a missing session.
func loginError(err error) error {
	if errors.Is(err, inspirehub.ErrUnauthorized) {
		return trace.AccessDenied("invalid username or password")
	}
	return sessionError(err)
}

// LoginCmd holds login options
type LoginCmd struct {
	Username string `arg:"" help:"Username"`
	Password string `help:"Password" required:"true" env:"INSPIREHUB_PASSWORD"`
}

func (c *LoginCmd) Run(a *app) error {
	cred, err := a.client.Login(a.ctx, inspirehub.LoginRequest{
		Username: c.Username,
		Password: c.Password,
	})
	if err != nil {
		return loginError(err)
	}

	fmt.Fprintf(a.out, "Logged in as %s (%s)\n", cred.Username, cred.SubjectID)
	return nil
}

// LogoutCmd ends the session
type LogoutCmd struct{}

func (c *LogoutCmd) Run(a *app) error {
	if err := a.client.Logout(a.ctx); err != nil {
		return trace.Wrap(err)
	}

	fmt.Fprintln(a.out, "Logged out")
	return nil
}

// RegisterCmd holds sign up options
type RegisterCmd struct {
	Username string `arg:"" help:"Username"`
	Email    string `help:"Email address" required:"true"`
	Password string `help:"Password" required:"true" env:"INSPIREHUB_PASSWORD"`
	Picture  string `help:"Profile picture file" type:"existingfile"`
}

func (c *RegisterCmd) Run(a *app) error {
	in := inspirehub.RegisterRequest{
		Username: c.Username,
		Email:    c.Email,
		Password: c.Password,
	}
	if c.Picture != "" {
		f, err := inspirehub.FileFromPath(c.Picture)
		if err != nil {
			return trace.Wrap(err)
		}
		in.ProfilePicture = f
	}

	profile, err := a.client.Register(a.ctx, in)
	if err != nil {
		return sessionError(err)
	}

	fmt.Fprintf(a.out, "Registered %s (%s)\n", profile.Username, profile.ID)
	return nil
}

// WhoamiCmd prints the active session
type WhoamiCmd struct{}

func (c *WhoamiCmd) Run(a *app) error {
	cred, ok := a.client.Session().Credential()
	if !ok {
		fmt.Fprintln(a.out, "Not logged in")
		return nil
	}

	fmt.Fprintf(a.out, "User:    %s\nID:      %s\n", cred.Username, cred.SubjectID)
	if claims, err := cred.Claims(); err == nil && claims.ExpiresAt != nil {
		fmt.Fprintf(a.out, "Expires: %s\n", claims.ExpiresAt.Time.Local().Format(time.RFC1123))
	}
	return nil
}

// FeedCmd holds feed paging options
type FeedCmd struct {
	PageSize int    `help:"Posts per page, defaults to the configured page size"`
	Pages    int    `help:"Number of pages to load" default:"1"`
	Page     int    `help:"Zero-based page to start from"`
	Mode     string `help:"append accumulates pages, replace shows each page on its own" enum:"append,replace" default:"append"`
}

func (c *FeedCmd) Run(a *app) error {
	size := c.PageSize
	if size <= 0 {
		size = a.cfg.PageSize
	}

	return runFeed(a, a.client.FeedPosts(size), c.Page, c.Pages, c.Mode)
}

// MineCmd lists the posts of the logged in user
type MineCmd struct {
	PageSize int `help:"Posts per page, defaults to the configured page size"`
	Pages    int `help:"Number of pages to load" default:"1"`
}

func (c *MineCmd) Run(a *app) error {
	cred, ok := a.client.Session().Credential()
	if !ok {
		return sessionError(inspirehub.ErrUnauthorized)
	}

	size := c.PageSize
	if size <= 0 {
		size = a.cfg.PageSize
	}

	return runFeed(a, a.client.SenderFeed(cred.SubjectID, size), 0, c.Pages, "append")
}

func runFeed(a *app, feed *inspirehub.Feed[inspirehub.Post], start, pages int, mode string) error {
	m := inspirehub.ModeAppend
	if mode == "replace" {
		m = inspirehub.ModeReplace
	}
	feed.Seek(start)

	var posts []inspirehub.Post
	for i := 0; i < pages && feed.Cursor().HasMore; i++ {
		var err error
		posts, err = feed.LoadPage(a.ctx, m)
		if err != nil {
			return sessionError(err)
		}

		a.log.WithFields(log.Fields{"offset": feed.Cursor().Offset, "more": feed.Cursor().HasMore}).Debug("Page loaded")

		if m == inspirehub.ModeReplace {
			fmt.Fprintf(a.out, "Page %d\n", start+i)
			renderPosts(a.out, posts)
		}
	}

	if m == inspirehub.ModeAppend {
		renderPosts(a.out, posts)
	}
	if !feed.Cursor().HasMore {
		fmt.Fprintln(a.out, "No more posts.")
	}
	return nil
}

func renderPosts(w io.Writer, posts []inspirehub.Post) {
	if len(posts) == 0 {
		fmt.Fprintln(w, "No posts available yet.")
		return
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"ID", "Title", "By", "Likes", "Content"})
	table.SetAutoWrapText(false)
	for _, p := range posts {
		content := p.Content
		if p.ImageURL != "" {
			content = "[image] " + p.ImageURL
		}
		table.Append([]string{p.ID, p.Title, p.Sender.DisplayName(), strconv.Itoa(p.Likes), content})
	}
	table.Render()
}

// PostCmd holds post creation options
type PostCmd struct {
	Title   string `arg:"" help:"Post title"`
	Content string `help:"Post text"`
	Image   string `help:"Image file to attach" type:"existingfile"`
}

func (c *PostCmd) Run(a *app) error {
	in := inspirehub.NewPost{Title: c.Title, Content: c.Content}
	if c.Image != "" {
		f, err := inspirehub.FileFromPath(c.Image)
		if err != nil {
			return trace.Wrap(err)
		}
		in.Image = f
	}

	post, err := a.client.CreatePost(a.ctx, in)
	if err != nil {
		return sessionError(err)
	}

	fmt.Fprintf(a.out, "Created post %s\n", post.ID)
	return nil
}

// DeleteCmd deletes a post
type DeleteCmd struct {
	PostID string `arg:"" help:"Post ID"`
}

func (c *DeleteCmd) Run(a *app) error {
	if err := a.client.DeletePost(a.ctx, c.PostID); err != nil {
		return sessionError(err)
	}

	fmt.Fprintf(a.out, "Deleted post %s\n", c.PostID)
	return nil
}

// LikeCmd toggles a like
type LikeCmd struct {
	PostID string `arg:"" help:"Post ID"`
}

func (c *LikeCmd) Run(a *app) error {
	res, err := a.client.ToggleLike(a.ctx, c.PostID)
	if err != nil {
		return sessionError(err)
	}

	state := "Unliked"
	if res.Liked {
		state = "Liked"
	}
	fmt.Fprintf(a.out, "%s, %d likes\n", state, res.Likes)
	return nil
}

// CommentCmd adds a comment
type CommentCmd struct {
	PostID  string `arg:"" help:"Post ID"`
	Content string `arg:"" help:"Comment text"`
}

func (c *CommentCmd) Run(a *app) error {
	comment, err := a.client.CreateComment(a.ctx, c.PostID, c.Content)
	if err != nil {
		return sessionError(err)
	}

	fmt.Fprintf(a.out, "Added comment %s\n", comment.ID)
	return nil
}

// CommentsCmd lists comments
type CommentsCmd struct {
	PostID string `arg:"" help:"Post ID"`
}

func (c *CommentsCmd) Run(a *app) error {
	post, err := a.client.Post(a.ctx, c.PostID)
	if err != nil {
		return sessionError(err)
	}

	comments, err := a.client.Comments(a.ctx, c.PostID)
	if err != nil {
		return sessionError(err)
	}

	fmt.Fprintf(a.out, "Comments on post: %s\n", post.Title)
	if len(comments) == 0 {
		fmt.Fprintln(a.out, "No comments yet.")
		return nil
	}

	table := tablewriter.NewWriter(a.out)
	table.SetHeader([]string{"ID", "By", "Comment"})
	for _, cm := range comments {
		table.Append([]string{cm.ID, cm.Sender.DisplayName(), cm.Content})
	}
	table.Render()
	return nil
}

// QuoteCmd prints the quote of the day
type QuoteCmd struct{}

func (c *QuoteCmd) Run(a *app) error {
	q, err := a.client.Quote(a.ctx)
	if err != nil {
		return sessionError(err)
	}
	if q == nil {
		fmt.Fprintln(a.out, "No quote today.")
		return nil
	}

	fmt.Fprintf(a.out, "“%s”\n  - %s\n", q.Text, q.Author)
	return nil
}
