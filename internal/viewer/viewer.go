// Package viewer serves stored reports as read-only HTML pages.
package viewer

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"

	"govai/internal/llm"
	"govai/internal/logging"
	"govai/internal/report"
	"govai/internal/server"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// Config configures the viewer.
type Config struct {
	Addr   string
	Debug  bool
	Logger logging.Logger
}

// Viewer renders the reports in one directory.
type Viewer struct {
	engine     *gin.Engine
	httpServer *http.Server
	store      report.Store
	logger     logging.Logger
}

// New builds the viewer over store.
func New(cfg Config, store report.Store) (*Viewer, error) {
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	logger := cfg.Logger
	if logging.IsNil(logger) {
		logger = logging.NewComponentLogger("viewer")
	}
	tmpl, err := parseTemplates()
	if err != nil {
		return nil, err
	}

	engine := gin.New()
	engine.UseRawPath = true
	engine.UnescapePathValues = true
	engine.Use(server.RequestLogger(logger), gin.Recovery())
	engine.SetHTMLTemplate(tmpl)

	v := &Viewer{engine: engine, store: store, logger: logger}
	v.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	engine.GET("/", v.handleList)
	engine.GET("/report/:name", v.handleReport)
	engine.NoRoute(func(c *gin.Context) {
		v.renderError(c, http.StatusNotFound, "")
	})
	return v, nil
}

func parseTemplates() (*template.Template, error) {
	return template.New("").Funcs(template.FuncMap{
		"markdown": func(v any) template.HTML { return Markdown(fmt.Sprint(v)) },
		"datetime": FormatTime,
	}).ParseFS(templateFS, "templates/*.tmpl")
}

// Handler returns the router.
func (v *Viewer) Handler() http.Handler {
	return v.engine
}

// Run serves until ctx is cancelled.
func (v *Viewer) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		v.logger.Info("report viewer listening on %s (dir %s)", v.httpServer.Addr, v.store.Dir)
		if err := v.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return v.httpServer.Shutdown(shutdownCtx)
}

// page carries what every template needs.
type page struct {
	Title string
	T     *Strings
	Lang  string
	Langs []LangLink
	Query string
}

func newPage(c *gin.Context) page {
	lang := Lang(c.Query("lang"))
	return page{
		Title: T(lang).PageTitle,
		T:     T(lang),
		Lang:  lang,
		Langs: langLinks(c.Request.URL, lang),
		Query: "?" + url.Values{"lang": {lang}}.Encode(),
	}
}

type listEntry struct {
	Name     string
	Href     string
	Modified string
	Size     string
}

type listPage struct {
	page
	Entries []listEntry
}

func (v *Viewer) handleList(c *gin.Context) {
	p := listPage{page: newPage(c)}
	entries, err := v.store.List()
	if err != nil {
		v.logger.Warn("list reports in %s: %v", v.store.Dir, err)
	}
	for _, e := range entries {
		p.Entries = append(p.Entries, listEntry{
			Name:     e.Name,
			Href:     "/report/" + url.PathEscape(e.Name) + p.Query,
			Modified: FormatTime(e.ModTime),
			Size:     FormatSize(e.Size),
		})
	}
	c.HTML(http.StatusOK, "list.tmpl", p)
}

type reportPage struct {
	page
	Name     string
	Report   *report.Report
	Tables   []VoteTable
	Metadata string
	Ambient  *ambientView
}

type ambientView struct {
	Verified     string
	Failed       bool
	Events       []string
	Validators   string
	Model        string
	MerkleRoot   string
	RequestID    string
	Status       string
	BidsPlaced   string
	BidsRevealed string
	Address      string
	Bidder       string
}

func (v *Viewer) handleReport(c *gin.Context) {
	name := c.Param("name")
	if err := report.ValidName(name); err != nil {
		v.renderError(c, http.StatusBadRequest, name)
		return
	}
	data, err := v.store.Read(name)
	if err != nil {
		v.renderError(c, http.StatusNotFound, name)
		return
	}
	rep, err := report.Decode(data)
	if err != nil {
		v.logger.Warn("decode %s: %v", name, err)
		v.renderError(c, http.StatusNotFound, name)
		return
	}

	p := reportPage{page: newPage(c), Name: name, Report: rep}
	p.Title = p.T.ReportTitle + ": " + name
	if ex := rep.Extracted; ex != nil {
		p.Tables = voteTables(ex.CurrentResults, orderedVotes(data), ex.Options)
		if len(ex.Metadata) > 0 {
			p.Metadata = prettyJSON(ex.Metadata)
		}
	}
	p.Ambient = newAmbientView(rep, p.T)
	c.HTML(http.StatusOK, "report.tmpl", p)
}

func newAmbientView(rep *report.Report, t *Strings) *ambientView {
	lc := rep.Ambient
	if lc == nil {
		return nil
	}
	a := &ambientView{
		Model:      lc.Model,
		MerkleRoot: lc.MerkleRoot,
		RequestID:  lc.RequestID,
		Bidder:     lc.Bidder,
	}
	if lc.Verified != nil {
		a.Verified = t.No
		a.Failed = !*lc.Verified
		if *lc.Verified {
			a.Verified = t.Yes
		}
	}
	for _, ev := range lc.Events {
		if ev.Kind == llm.KindVerification {
			a.Events = append(a.Events, ev.Type)
		}
	}
	if lc.VerifiedByValidators != nil {
		switch vv := lc.VerifiedByValidators.(type) {
		case bool:
			a.Validators = t.No
			if vv {
				a.Validators = t.Yes
			}
		case string:
			a.Validators = vv
		default:
			a.Validators = prettyJSON(vv)
		}
	}
	if au := lc.Auction; au != nil {
		a.Status = au.Status
		a.Address = au.Address
		if au.Bids != nil {
			a.BidsPlaced = GroupDigits(float64(au.Bids.Placed))
			a.BidsRevealed = GroupDigits(float64(au.Bids.Revealed))
		}
	}
	return a
}

type errorPage struct {
	page
	Status  int
	Message string
	Name    string
}

func (v *Viewer) renderError(c *gin.Context, status int, name string) {
	p := errorPage{page: newPage(c), Status: status, Name: name}
	p.Message = p.T.NotFound
	if status == http.StatusBadRequest {
		p.Message = p.T.BadRequest
	}
	p.Title = p.Message
	c.HTML(status, "error.tmpl", p)
}
