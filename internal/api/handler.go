// Package api serves the NutriTrack views over HTTP.
package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"nutritrack/internal/capture"
	"nutritrack/internal/meal"
	"nutritrack/internal/scan"
	"nutritrack/internal/session"
	"nutritrack/internal/tracker"
)

// Tracker defines the dashboard, allergen, profile and planner operations.
type Tracker interface {
	Dashboard(ctx context.Context, email string, loc *time.Location) (*tracker.Dashboard, error)
	Weekly(ctx context.Context, email string) ([]meal.DayCalories, error)
	Allergens(ctx context.Context, email, query string) ([]meal.Allergen, error)
	AddAllergen(ctx context.Context, email, name, severity, notes string) (*meal.Allergen, error)
	QuickAdd(ctx context.Context, email string, names ...string) ([]meal.Allergen, error)
	RemoveAllergen(ctx context.Context, id string) error
	Profile(ctx context.Context, email string) (*tracker.ProfileView, error)
	SaveProfile(ctx context.Context, email string, p meal.Profile) (*meal.Profile, error)
	Planner(ctx context.Context, email string, today time.Time) (*tracker.Planner, error)
	SavePlan(ctx context.Context, email string, p meal.Plan) (*meal.Plan, error)
}

// Handler handles HTTP requests.
type Handler struct {
	App            *session.App
	Tracker        Tracker
	Log            logrus.FieldLogger
	ScanTimeout    time.Duration
	RequestTimeout time.Duration
}

// NewHandler creates a new Handler.
func NewHandler(app *session.App, t Tracker, log logrus.FieldLogger, scanTimeout, requestTimeout time.Duration) *Handler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Handler{App: app, Tracker: t, Log: log, ScanTimeout: scanTimeout, RequestTimeout: requestTimeout}
}

// Register mounts every route on r.
func (h *Handler) Register(r *gin.Engine) {
	r.Use(RequestID())
	r.GET("/healthz", h.Health)

	api := r.Group("/api")
	api.POST("/session/signin", h.SignIn)
	api.POST("/session/signup", h.SignUp)
	api.GET("/views/:view", h.OptionalSession(), h.View)

	authed := api.Group("", h.RequireSession())
	authed.GET("/session", h.GetSession)
	authed.POST("/session/signout", h.SignOut)
	authed.GET("/profile", h.GetProfile)
	authed.POST("/profile", h.SaveProfile)

	gated := authed.Group("", h.RequireProfile())
	gated.POST("/scan", h.Scan)
	gated.GET("/dashboard", h.Dashboard)
	gated.GET("/weekly", h.Weekly)
	gated.GET("/allergens", h.ListAllergens)
	gated.POST("/allergens", h.AddAllergen)
	gated.POST("/allergens/common", h.QuickAddAllergens)
	gated.DELETE("/allergens/:id", h.DeleteAllergen)
	gated.GET("/planner", h.GetPlanner)
	gated.POST("/planner", h.SavePlan)
	gated.POST("/chat", h.Chat)
	gated.DELETE("/chat", h.ResetChat)
}

func (h *Handler) logger(c *gin.Context) logrus.FieldLogger {
	fields := logrus.Fields{"request_id": c.GetString(requestIDKey), "path": c.FullPath()}
	if s := currentSession(c); s != nil {
		fields["email"] = s.Email
	}
	return h.Log.WithFields(fields)
}

func (h *Handler) requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), h.RequestTimeout)
}

// viewerLocation reads the viewer's IANA zone from X-Timezone. Missing or
// unknown zones mean the server's local zone.
func viewerLocation(c *gin.Context) *time.Location {
	if name := c.GetHeader("X-Timezone"); name != "" {
		if loc, err := time.LoadLocation(name); err == nil {
			return loc
		}
	}
	return time.Local
}

// Health reports liveness.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type credentialsRequest struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

// SignIn handles password sign-in.
func (h *Handler) SignIn(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx, cancel := h.requestContext(c)
	defer cancel()

	s, err := h.App.SignIn(ctx, req.Email, req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

// SignUp registers a new account.
func (h *Handler) SignUp(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx, cancel := h.requestContext(c)
	defer cancel()

	s, err := h.App.SignUp(ctx, req.Email, req.Password, req.ConfirmPassword)
	if err != nil {
		h.fail(c, err)
		return
	}
	if s.AccessToken == "" {
		c.JSON(http.StatusAccepted, gin.H{"message": "Check your email to confirm your account.", "session": s})
		return
	}
	c.JSON(http.StatusCreated, s)
}

// SignOut ends the session.
func (h *Handler) SignOut(c *gin.Context) {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	if err := h.App.SignOut(ctx, currentSession(c)); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Signed out"})
}

// GetSession returns the current session without its token.
func (h *Handler) GetSession(c *gin.Context) {
	s := *currentSession(c)
	s.AccessToken = ""
	c.JSON(http.StatusOK, s)
}

// View resolves a tab id to the view the user may see and renders it.
func (h *Handler) View(c *gin.Context) {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	ctx = withLocation(ctx, viewerLocation(c))
	v, data, err := h.App.Render(ctx, currentSession(c), c.Param("view"), h.Views())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"view": v, "data": data})
}

type scanRequest struct {
	Image string `json:"image"`
}

// Scan runs the photo analysis pipeline on a multipart "file" upload or a
// JSON camera snapshot {"image": "data:image/...;base64,..."}.
func (h *Handler) Scan(c *gin.Context) {
	var src scan.Source
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		file, err := c.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "get form err: " + err.Error()})
			return
		}
		src = capture.Upload{File: file}
	} else {
		var req scanRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		src = capture.Camera{DataURI: req.Image}
	}

	s := currentSession(c)
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.ScanTimeout)
	defer cancel()

	p, err := h.App.Pipeline(ctx, s.Email)
	if err != nil {
		h.fail(c, err)
		return
	}
	res, err := p.Run(ctx, src)
	if err != nil {
		h.fail(c, err)
		return
	}

	switch {
	case res.State == scan.Failed:
		status := statusFor(res.Err)
		if status == http.StatusInternalServerError {
			status = http.StatusBadGateway
		}
		c.JSON(status, res)
	case res.SaveErr != nil:
		c.JSON(http.StatusBadGateway, res)
	default:
		c.JSON(http.StatusOK, res)
	}
}

// Dashboard returns today's summary, recent meals, allergens and the week.
func (h *Handler) Dashboard(c *gin.Context) {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	d, err := h.Tracker.Dashboard(ctx, currentSession(c).Email, viewerLocation(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

// Weekly returns the per-day calorie totals of the last week.
func (h *Handler) Weekly(c *gin.Context) {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	w, err := h.Tracker.Weekly(ctx, currentSession(c).Email)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, w)
}

// ListAllergens returns the user's allergens, filtered by ?q=.
func (h *Handler) ListAllergens(c *gin.Context) {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	list, err := h.Tracker.Allergens(ctx, currentSession(c).Email, c.Query("q"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

type allergenRequest struct {
	Name     string `json:"name"`
	Severity string `json:"severity"`
	Notes    string `json:"notes"`
}

// AddAllergen adds a free-form allergen.
func (h *Handler) AddAllergen(c *gin.Context) {
	var req allergenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s := currentSession(c)
	ctx, cancel := h.requestContext(c)
	defer cancel()

	a, err := h.Tracker.AddAllergen(ctx, s.Email, req.Name, req.Severity, req.Notes)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.App.AllergensChanged(s.Email)
	c.JSON(http.StatusCreated, a)
}

type quickAddRequest struct {
	Names []string `json:"names"`
}

// QuickAddAllergens adds allergens from the common list.
func (h *Handler) QuickAddAllergens(c *gin.Context) {
	var req quickAddRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s := currentSession(c)
	ctx, cancel := h.requestContext(c)
	defer cancel()

	added, err := h.Tracker.QuickAdd(ctx, s.Email, req.Names...)
	if len(added) > 0 {
		h.App.AllergensChanged(s.Email)
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, added)
}

// DeleteAllergen removes an allergen by id.
func (h *Handler) DeleteAllergen(c *gin.Context) {
	s := currentSession(c)
	ctx, cancel := h.requestContext(c)
	defer cancel()

	if err := h.Tracker.RemoveAllergen(ctx, c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	h.App.AllergensChanged(s.Email)
	c.Status(http.StatusNoContent)
}

// GetProfile returns the profile, in create mode when there is none yet.
func (h *Handler) GetProfile(c *gin.Context) {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	v, err := h.Tracker.Profile(ctx, currentSession(c).Email)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

// SaveProfile stores the profile under the session email.
func (h *Handler) SaveProfile(c *gin.Context) {
	var p meal.Profile
	if err := c.ShouldBindJSON(&p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx, cancel := h.requestContext(c)
	defer cancel()

	saved, err := h.Tracker.SaveProfile(ctx, currentSession(c).Email, p)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, saved)
}

// GetPlanner returns every plan keyed by date.
func (h *Handler) GetPlanner(c *gin.Context) {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	p, err := h.Tracker.Planner(ctx, currentSession(c).Email, time.Now().In(viewerLocation(c)))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// SavePlan stores the plan for one date.
func (h *Handler) SavePlan(c *gin.Context) {
	var p meal.Plan
	if err := c.ShouldBindJSON(&p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx, cancel := h.requestContext(c)
	defer cancel()

	saved, err := h.Tracker.SavePlan(ctx, currentSession(c).Email, p)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, saved)
}
