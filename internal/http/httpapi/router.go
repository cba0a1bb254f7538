package httpapi

import (
	"io/fs"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"server/internal/http/handlers"
	"server/internal/infra"
	"server/internal/middleware"
)

// Options carries everything the router needs besides the handlers.
type Options struct {
	Logger             infra.Logger
	AllowedOrigins     []string
	RateLimitPerMinute int
	DefaultLocale      string
	CountryLookup      middleware.CountryLookup
	UploadsDir         string
	ResultsDir         string
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(opts.Logger),
		middleware.CORS(opts.AllowedOrigins),
		middleware.I18N(opts.DefaultLocale, opts.CountryLookup),
	)
	if opts.RateLimitPerMinute > 0 {
		r.Use(middleware.RateLimit(opts.RateLimitPerMinute, time.Minute))
	}

	r.Get("/", app.Root)
	r.Get("/healthz", app.Health)

	r.Route("/api", func(r chi.Router) {
		r.Get("/styles", app.Styles)
		r.Post("/upload", app.Upload)
		r.Post("/generate", app.Generate)

		r.Route("/consultant", func(r chi.Router) {
			r.Post("/analyze", app.Analyze)
			r.Post("/recommend", app.Recommend)
			r.Post("/fitting", app.Fitting)
			r.Post("/time-change", app.TimeChange)
			r.Post("/multi-angle", app.MultiAngle)
			r.Post("/pose", app.Pose)
			r.Post("/photo-booth", app.PhotoBooth)
		})
	})

	fileServer(r, "/uploads", opts.UploadsDir)
	fileServer(r, "/results", opts.ResultsDir)

	return r
}

// fileServer mounts a static directory under prefix with listings disabled.
func fileServer(r chi.Router, prefix, dir string) {
	if dir == "" {
		return
	}
	fs := http.StripPrefix(prefix, http.FileServer(noListingDir{http.Dir(dir)}))
	r.Get(prefix+"/*", func(w http.ResponseWriter, req *http.Request) {
		fs.ServeHTTP(w, req)
	})
}

type noListingDir struct {
	fs http.FileSystem
}

func (d noListingDir) Open(name string) (http.File, error) {
	f, err := d.fs.Open(name)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if info.IsDir() {
		f.Close()
		return nil, fs.ErrNotExist
	}
	return f, nil
}
