package web

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/nconklindev/sheet2xml/internal/api"
	"github.com/nconklindev/sheet2xml/internal/header"
	"github.com/nconklindev/sheet2xml/internal/types"
	"github.com/nconklindev/sheet2xml/internal/upload"
	"github.com/nconklindev/sheet2xml/internal/workflow"

	"github.com/gin-gonic/gin"
)

type rowView struct {
	Index    int
	Number   int
	TagName  string
	TagValue string
	Error    string
}

type formView struct {
	Title     string
	APIURL    string
	Error     string
	FileError string
	Rows      []rowView
	CanRemove bool
	Valid     bool
	Preview   string
	Reserved  bool
}

type loginView struct {
	Title string
	Error string
}

func (s *Server) showForm(c *gin.Context) {
	orch := workflow.New(nil, nil, workflow.WithLogger(s.log))
	s.render(c, http.StatusOK, orch, "")
}

// submitForm handles every button of the form. Only "convert" talks to the
// service; the others re-render the rows.
func (s *Server) submitForm(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxRequestSize)
	if err := c.Request.ParseMultipartForm(s.router.MaxMultipartMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			s.render(c, http.StatusRequestEntityTooLarge, workflow.New(nil, nil, workflow.WithLogger(s.log)), upload.MsgTooLarge)
			return
		}
		s.log.Warn().Err(err).Msg("Malformed form")
		c.String(http.StatusBadRequest, "malformed form")
		return
	}

	var unauthorized bool
	client := s.client(c, func(string) { unauthorized = true })
	nav := &redirectNavigator{client: client}
	orch := workflow.New(client, nav, workflow.WithLogger(s.log))

	fields := formFields(c.PostFormArray("tagName[]"), c.PostFormArray("tagValue[]"))
	_ = orch.Edit(func(e *header.Editor) error {
		e.Set(fields)
		return nil
	})

	action := c.PostForm("action")
	switch {
	case action == "add":
		_ = orch.Edit(func(e *header.Editor) error {
			e.Add()
			return nil
		})

	case strings.HasPrefix(action, "remove-"):
		i, err := strconv.Atoi(strings.TrimPrefix(action, "remove-"))
		if err == nil {
			_ = orch.Edit(func(e *header.Editor) error {
				if !e.CanRemove() {
					return nil
				}
				return e.Remove(i)
			})
		}

	case action == "convert":
		if fh, err := c.FormFile("file"); err == nil {
			f, err := fileFromHeader(fh)
			if err != nil {
				s.log.Error().Err(err).Str("file", fh.Filename).Msg("Failed to read upload")
				c.String(http.StatusBadRequest, "could not read upload")
				return
			}
			if err := orch.SelectFile([]types.SelectedFile{f}); err != nil {
				s.render(c, http.StatusBadRequest, orch, "")
				return
			}
		}

		err := orch.Submit(c.Request.Context())
		switch {
		case unauthorized:
			c.Redirect(http.StatusSeeOther, api.LoginPath)
		case errors.Is(err, workflow.ErrNotReady):
			s.render(c, http.StatusBadRequest, orch, "")
		case err != nil:
			s.render(c, http.StatusBadGateway, orch, "")
		default:
			c.Redirect(http.StatusSeeOther, nav.target)
		}
		return
	}

	s.render(c, http.StatusOK, orch, "")
}

// render draws the form from orch. fileErr replaces the selector's message
// for failures the selector never saw.
func (s *Server) render(c *gin.Context, status int, orch *workflow.Orchestrator, fileErr string) {
	view := formView{
		Title:  "Convert",
		APIURL: s.cfg.APIURL,
		Error:  orch.Err(),
	}

	orch.ViewFields(func(e *header.Editor) {
		view.CanRemove = e.CanRemove()
		view.Valid = e.Valid()
		view.Reserved = e.HasReservedMarkup() && !s.cfg.Preview.Escape
		if s.cfg.Preview.Escape {
			view.Preview = e.EscapedPreview()
		} else {
			view.Preview = e.Preview()
		}
		for i := 0; i < e.Len(); i++ {
			f := e.Field(i)
			view.Rows = append(view.Rows, rowView{
				Index:    i,
				Number:   i + 1,
				TagName:  f.TagName,
				TagValue: f.TagValue,
				Error:    e.Error(i),
			})
		}
	})

	sel := orch.SelectorState()
	switch {
	case fileErr != "":
		view.FileError = fileErr
	case sel.Err != "":
		view.FileError = sel.Err
	case sel.Rejected:
		view.FileError = upload.MsgRejected
	}

	c.HTML(status, "form.html", view)
}

// formFields pairs the posted names and values by position. A form with no
// rows gets one blank row to type into.
func formFields(names, values []string) []types.HeaderField {
	n := len(names)
	if len(values) > n {
		n = len(values)
	}
	if n == 0 {
		return []types.HeaderField{{}}
	}

	fields := make([]types.HeaderField, n)
	for i := range fields {
		if i < len(names) {
			fields[i].TagName = names[i]
		}
		if i < len(values) {
			fields[i].TagValue = values[i]
		}
	}
	return fields
}

func fileFromHeader(fh *multipart.FileHeader) (types.SelectedFile, error) {
	mediaType := fh.Header.Get("Content-Type")
	if mt, _, err := mime.ParseMediaType(mediaType); err == nil {
		mediaType = mt
	}
	// Browsers without a registered type send octet-stream or nothing.
	if mediaType == "" || mediaType == "application/octet-stream" {
		mediaType = upload.MediaTypeFor(fh.Filename)
	}

	f := types.SelectedFile{
		Name:      fh.Filename,
		Size:      fh.Size,
		MediaType: mediaType,
	}
	if upload.Validate(f) != nil {
		// The selector reports it; no need to read the body.
		return f, nil
	}

	r, err := fh.Open()
	if err != nil {
		return f, err
	}
	defer r.Close()
	f.Content, err = io.ReadAll(r)
	if err != nil {
		return f, fmt.Errorf("read %s: %w", fh.Filename, err)
	}
	return f, nil
}

func (s *Server) showLogin(c *gin.Context) {
	c.HTML(http.StatusOK, "login.html", loginView{Title: "Sign in"})
}

func (s *Server) login(c *gin.Context) {
	token := strings.TrimSpace(c.PostForm("token"))
	if token == "" {
		c.HTML(http.StatusBadRequest, "login.html", loginView{Title: "Sign in", Error: "A session token is required"})
		return
	}
	newCookieStore(c).SetToken(token)
	s.log.Info().Msg("Session token stored")
	c.Redirect(http.StatusSeeOther, "/")
}

// download relays a converted document for browsers that cannot reach the
// service directly.
func (s *Server) download(c *gin.Context) {
	var unauthorized bool
	client := s.client(c, func(string) { unauthorized = true })

	d, err := client.FetchDownload(c.Request.Context(), c.Param("id"))
	if unauthorized {
		c.Redirect(http.StatusSeeOther, api.LoginPath)
		return
	}
	if err != nil {
		status := http.StatusBadGateway
		var apiErr *api.Error
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			status = http.StatusNotFound
		}
		c.String(status, err.Error())
		return
	}

	contentType := d.ContentType
	if contentType == "" {
		contentType = "application/xml"
	}
	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": d.Name}))
	c.Data(http.StatusOK, contentType, d.Data)
}

func (s *Server) healthz(c *gin.Context) {
	backend := "unhealthy"
	if s.client(c, nil).HealthCheck(c.Request.Context()) {
		backend = api.StatusHealthy
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"backend": backend,
	})
}

// redirectNavigator remembers where the browser should be sent. Service
// download links go through the local relay so the browser never needs to
// reach the service itself.
type redirectNavigator struct {
	client *api.Client
	target string
}

func (n *redirectNavigator) Navigate(_ context.Context, downloadURL string) error {
	target, err := n.client.ResolveURL(downloadURL)
	if err != nil {
		return err
	}
	n.target = relayTarget(n.client.BaseURL(), target)
	return nil
}

// relayTarget maps <base>/download/{id} to the local /download/{id}.
// Anything else is returned unchanged.
func relayTarget(baseURL, target string) string {
	base, err := url.Parse(baseURL)
	if err != nil {
		return target
	}
	u, err := url.Parse(target)
	if err != nil {
		return target
	}
	if !strings.EqualFold(u.Scheme, base.Scheme) || !strings.EqualFold(u.Host, base.Host) {
		return target
	}
	id, ok := strings.CutPrefix(u.Path, strings.TrimRight(base.Path, "/")+"/download/")
	if !ok || id == "" || strings.Contains(id, "/") {
		return target
	}
	return "/download/" + url.PathEscape(id)
}
