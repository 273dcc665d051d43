package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"recruitment/internal/admin"
	"recruitment/internal/auth"
	"recruitment/internal/candidate"
	"recruitment/internal/common"
	"recruitment/internal/config"
	"recruitment/internal/httpmiddleware"
	"recruitment/internal/metrics"
	"recruitment/internal/notify"
	"recruitment/internal/queue"
	"recruitment/internal/review"
	"recruitment/internal/slot"
	"recruitment/internal/store"
)

func main() {
	cfg := config.Load()

	// Set Gin mode based on environment
	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

func runHTTP(cfg config.App) error {
	db, err := store.NewDB(cfg.DatabaseURL)
	if db == nil {
		return err
	}
	if err != nil {
		log.Printf("warning: db not reachable yet: %v", err)
	}
	defer db.Close()
	if err := store.Migrate(context.Background(), db.Client); err != nil {
		log.Printf("warning: schema bootstrap failed: %v", err)
	}

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "recruitment:mail")
	}
	notifier := notify.NewQueueNotifier(q)

	candidateRepo := candidate.NewRepository(db.Client)
	adminRepo := admin.NewRepository(db.Client)
	slotRepo := slot.NewRepository(db.Client)

	progression := candidate.NewService(candidateRepo)
	allocator := slot.NewAllocator(slotRepo, candidateRepo, adminRepo, notifier)
	reviews := review.NewService(allocator, progression)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(corsMiddleware())
	r.Use(securityHeaders())
	r.Use(httpmiddleware.NewSimpleTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin).GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		redisHealthy := redisClient.Healthy(c.Request.Context())
		dbHealthy := db.Client.PingContext(c.Request.Context()) == nil
		status := http.StatusOK
		if !redisHealthy || !dbHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "redis": redisHealthy, "db": dbHealthy})
	})

	// The external authenticator verifies identity; login receives the
	// verified principal and provisions a record on first sign-in.
	type principal struct {
		Name  string `json:"name" binding:"required"`
		Email string `json:"email" binding:"required,email"`
	}

	r.POST("/v1/candidate/login", func(c *gin.Context) {
		var req principal
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "email and name are required"})
			return
		}
		name, regNo := candidate.SplitDisplayName(req.Name)
		cand, err := candidateRepo.CreateFromLogin(c.Request.Context(), name, req.Email, regNo, candidate.IsFresherRegNo(regNo))
		if err != nil {
			fail(c, err)
			return
		}
		tokens, err := auth.Issue(cand.ID.String(), auth.RoleCandidate, cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL, cfg.RefreshTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "token issue failed"})
			return
		}
		_ = candidateRepo.SaveRefreshToken(c.Request.Context(), cand.ID, tokens.RefreshToken, tokens.RefreshExp)
		c.JSON(http.StatusOK, gin.H{
			"success":       true,
			"access_token":  tokens.AccessToken,
			"refresh_token": tokens.RefreshToken,
			"expires_at":    tokens.AccessExp.Unix(),
			"data":          candidateSummary(cand, nil),
		})
	})

	r.POST("/v1/candidate/refresh-token", func(c *gin.Context) {
		id, token, ok := verifyRefresh(c, cfg, auth.RoleCandidate)
		if !ok {
			return
		}
		cand, err := candidateRepo.GetByID(c.Request.Context(), id)
		if err != nil || cand.RefreshToken != token {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "invalid refresh token"})
			return
		}
		issueAccess(c, cfg, cand.ID.String(), auth.RoleCandidate)
	})

	r.POST("/v1/admin/login", func(c *gin.Context) {
		var req principal
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "email and name are required"})
			return
		}
		name, _ := candidate.SplitDisplayName(req.Name)
		adm, err := adminRepo.CreateFromLogin(c.Request.Context(), name, req.Email)
		if err != nil {
			fail(c, err)
			return
		}
		tokens, err := auth.Issue(adm.ID.String(), auth.RoleAdmin, cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL, cfg.RefreshTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "token issue failed"})
			return
		}
		_ = adminRepo.SaveRefreshToken(c.Request.Context(), adm.ID, tokens.RefreshToken, tokens.RefreshExp)
		c.JSON(http.StatusOK, gin.H{
			"success":       true,
			"access_token":  tokens.AccessToken,
			"refresh_token": tokens.RefreshToken,
			"expires_at":    tokens.AccessExp.Unix(),
			"data":          adm,
		})
	})

	r.POST("/v1/admin/refresh-token", func(c *gin.Context) {
		id, token, ok := verifyRefresh(c, cfg, auth.RoleAdmin)
		if !ok {
			return
		}
		adm, err := adminRepo.GetByID(c.Request.Context(), id)
		if err != nil || adm.RefreshToken != token {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "invalid refresh token"})
			return
		}
		issueAccess(c, cfg, adm.ID.String(), auth.RoleAdmin)
	})

	candidateGroup := r.Group("/v1/candidate", auth.RequireRole(auth.RoleCandidate, cfg.JWTSigningKey, cfg.JWTIssuer))

	candidateGroup.POST("/logout", func(c *gin.Context) {
		id, _ := auth.SubjectID(c)
		_ = candidateRepo.ClearRefreshToken(c.Request.Context(), id)
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "logout successful"})
	})

	candidateGroup.GET("/me", func(c *gin.Context) {
		id, _ := auth.SubjectID(c)
		cand, err := progression.Get(c.Request.Context(), id)
		if err != nil {
			fail(c, err)
			return
		}
		current, err := allocator.CurrentFor(c.Request.Context(), id, cand.CurrentRound)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "data": candidateSummary(cand, current)})
	})

	candidateGroup.GET("/management-question", func(c *gin.Context) {
		n := candidate.PickManagementQuestion(time.Now().UnixNano())
		c.JSON(http.StatusOK, gin.H{"success": true, "question": n})
	})

	candidateGroup.POST("/round0", func(c *gin.Context) {
		id, _ := auth.SubjectID(c)
		var payload candidate.Round0
		if err := c.ShouldBindJSON(&payload); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
			return
		}
		if err := progression.SubmitRoundZero(c.Request.Context(), id, payload); err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "round 0 submission successful"})
	})

	candidateGroup.GET("/slots", func(c *gin.Context) {
		id, _ := auth.SubjectID(c)
		round := 0
		if v := c.Query("round"); v != "" {
			round, _ = strconv.Atoi(v)
		} else {
			cand, err := progression.Get(c.Request.Context(), id)
			if err != nil {
				fail(c, err)
				return
			}
			round = cand.CurrentRound
		}
		slots, err := allocator.ListAvailable(c.Request.Context(), id, round, time.Now().UTC())
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "total_slots": len(slots), "data": slots})
	})

	candidateGroup.POST("/slots/:slotId/select", func(c *gin.Context) {
		id, _ := auth.SubjectID(c)
		slotID, err := uuid.Parse(c.Param("slotId"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid slot id"})
			return
		}
		if err := allocator.Book(c.Request.Context(), id, slotID); err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "slot selection successful"})
	})

	candidateGroup.POST("/slots/:slotId/ready", func(c *gin.Context) {
		id, _ := auth.SubjectID(c)
		slotID, err := uuid.Parse(c.Param("slotId"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid slot id"})
			return
		}
		if err := allocator.MarkReady(c.Request.Context(), id, slotID); err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "kindly check your mail for the meet link"})
	})

	candidateGroup.POST("/task", func(c *gin.Context) {
		id, _ := auth.SubjectID(c)
		var req struct {
			TaskLink string `json:"task_link" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "task link is required"})
			return
		}
		if err := progression.SubmitTask(c.Request.Context(), id, req.TaskLink); err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "task submission successful"})
	})

	adminGroup := r.Group("/v1/admin", auth.RequireRole(auth.RoleAdmin, cfg.JWTSigningKey, cfg.JWTIssuer))

	adminGroup.POST("/logout", func(c *gin.Context) {
		id, _ := auth.SubjectID(c)
		_ = adminRepo.ClearRefreshToken(c.Request.Context(), id)
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "logout successful"})
	})

	adminGroup.GET("/me", func(c *gin.Context) {
		id, _ := auth.SubjectID(c)
		adm, err := adminRepo.GetByID(c.Request.Context(), id)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "data": adm})
	})

	adminGroup.POST("/meet-link", func(c *gin.Context) {
		id, _ := auth.SubjectID(c)
		var req struct {
			MeetLink string `json:"meet_link" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "meet link is required"})
			return
		}
		if err := adminRepo.SetMeetLink(c.Request.Context(), id, req.MeetLink); err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "meet link submission successful"})
	})

	adminGroup.GET("/slots", func(c *gin.Context) {
		slots, err := allocator.ListByStatus(c.Request.Context(), c.Query("status"))
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "data": slots})
	})

	adminGroup.POST("/slots/:slotId/take", func(c *gin.Context) {
		id, _ := auth.SubjectID(c)
		slotID, err := uuid.Parse(c.Param("slotId"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid slot id"})
			return
		}
		s, err := allocator.ClaimAsReviewer(c.Request.Context(), id, slotID)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "reviewer assigned and occupants notified", "data": s})
	})

	adminGroup.POST("/slots/:slotId/join", func(c *gin.Context) {
		id, _ := auth.SubjectID(c)
		slotID, err := uuid.Parse(c.Param("slotId"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid slot id"})
			return
		}
		s, err := allocator.JoinAsObserver(c.Request.Context(), id, slotID)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "admin added to the slot", "data": s})
	})

	adminGroup.GET("/reviews", func(c *gin.Context) {
		id, _ := auth.SubjectID(c)
		pending, err := reviews.ListPending(c.Request.Context(), id)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "data": pending})
	})

	adminGroup.POST("/slots/:slotId/review/:candidateId", func(c *gin.Context) {
		id, _ := auth.SubjectID(c)
		slotID, err1 := uuid.Parse(c.Param("slotId"))
		candidateID, err2 := uuid.Parse(c.Param("candidateId"))
		if err1 != nil || err2 != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid slot id or candidate id"})
			return
		}
		var req struct {
			Review          string     `json:"review" binding:"required"`
			TaskTitle       string     `json:"task_title"`
			TaskDescription string     `json:"task_description"`
			TaskDeadline    *time.Time `json:"task_deadline"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "review is required"})
			return
		}
		var task *candidate.TaskAssignment
		if req.TaskTitle != "" || req.TaskDescription != "" || req.TaskDeadline != nil {
			task = &candidate.TaskAssignment{Title: req.TaskTitle, Description: req.TaskDescription}
			if req.TaskDeadline != nil {
				task.Deadline = *req.TaskDeadline
			}
		}
		if err := reviews.Submit(c.Request.Context(), id, slotID, candidateID, req.Review, task); err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "review submission successful"})
	})

	superGroup := adminGroup.Group("", requireAccess(adminRepo))

	superGroup.POST("/slots", func(c *gin.Context) {
		var req struct {
			Round       int       `json:"round" binding:"required"`
			ScheduledAt time.Time `json:"scheduled_at" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "round and scheduled_at are required"})
			return
		}
		s, err := allocator.Create(c.Request.Context(), req.Round, req.ScheduledAt)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"success": true, "message": "slot creation successful", "data": s})
	})

	superGroup.POST("/eliminations/non-freshers", func(c *gin.Context) {
		count, err := progression.SweepNonFreshers(c.Request.Context())
		if err != nil {
			fail(c, err)
			return
		}
		metrics.Eliminations.WithLabelValues("non_fresher").Add(float64(count))
		c.JSON(http.StatusOK, gin.H{"success": true, "modified_count": count})
	})

	superGroup.POST("/eliminations/rounds/:round", func(c *gin.Context) {
		n, err := strconv.Atoi(c.Param("round"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid round number"})
			return
		}
		round, ok := candidate.ParseRound(n)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid round number"})
			return
		}
		count, err := progression.SweepTaskDefaulters(c.Request.Context(), round)
		if err != nil {
			fail(c, err)
			return
		}
		metrics.Eliminations.WithLabelValues("round" + c.Param("round")).Add(float64(count))
		c.JSON(http.StatusOK, gin.H{"success": true, "modified_count": count})
	})

	// Graceful shutdown
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting server on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced shutdown: %v", err)
	}

	log.Println("Server exited")
	return nil
}

func issueAccess(c *gin.Context, cfg config.App, subject, role string) {
	tokens, err := auth.Issue(subject, role, cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL, cfg.RefreshTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "token issue failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"access_token": tokens.AccessToken,
		"expires_at":   tokens.AccessExp.Unix(),
	})
}

// fail writes a domain error with its mapped status.
func fail(c *gin.Context, err error) {
	c.JSON(common.HTTPStatus(err), gin.H{"success": false, "error": common.MessageOf(err)})
}

// requireAccess gates superadmin routes on the admin access flag.
func requireAccess(repo *admin.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := auth.SubjectID(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "missing principal"})
			return
		}
		adm, err := repo.GetByID(c.Request.Context(), id)
		if err != nil || !adm.Access {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"success": false, "error": "superadmin access required"})
			return
		}
		c.Next()
	}
}

func candidateSummary(cand *candidate.Candidate, current *slot.Slot) gin.H {
	data := gin.H{
		"id":            cand.ID,
		"name":          cand.Name,
		"email":         cand.Email,
		"is_fresher":    cand.IsFresher,
		"is_eliminated": cand.IsEliminated,
		"current_round": cand.CurrentRound,
		"round0_status": cand.Round0.Status,
		"round1_status": cand.RoundState(candidate.Round1).Status,
		"round2_status": cand.RoundState(candidate.Round2).Status,
		"round3_status": cand.RoundState(candidate.Round3).Status,
	}
	if current != nil {
		data["slot"] = current
	}
	return data
}

func verifyRefresh(c *gin.Context, cfg config.App, role string) (uuid.UUID, string, bool) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	_ = c.ShouldBindJSON(&req)
	if req.RefreshToken == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "refresh token is required"})
		return uuid.Nil, "", false
	}
	claims, err := auth.Parse(req.RefreshToken, cfg.JWTSigningKey, cfg.JWTIssuer)
	if err != nil || claims.Role != role {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "invalid refresh token"})
		return uuid.Nil, "", false
	}
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "invalid refresh token"})
		return uuid.Nil, "", false
	}
	return id, req.RefreshToken, true
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
