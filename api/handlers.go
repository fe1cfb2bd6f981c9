package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"taskboard-api/board"
	"taskboard-api/domain"
	"taskboard-api/stream"
)

const requestBodyMaxSize = 64 << 10

// Register wires up all API routes on the provided Echo instance.
func Register(e *echo.Echo, b Board, store Reader, auth Authenticator, hub *stream.Hub, logger *log.Logger) {
	e.GET("/api/tasks", getTasks(store, auth))
	e.POST("/api/tasks", postTask(b, auth))
	e.PUT("/api/tasks/:id", putTask(b, auth))
	e.PATCH("/api/tasks/:id/status", patchTaskStatus(b, auth))
	e.DELETE("/api/tasks/:id", deleteTask(b, auth))
	e.POST("/api/tasks/:id/assign", assignTask(b, auth))
	e.GET("/api/users", getUsers(store, auth))
	e.GET("/stream", streamEvents(auth, hub, logger))
	e.GET("/healthz", healthz())
}

type createTaskRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
}

type updateTaskRequest struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	Priority     string `json:"priority"`
	Status       string `json:"status"`
	AssignedUser string `json:"assignedUser"`
	Version      int64  `json:"version"`
}

type statusRequest struct {
	Status string `json:"status"`
}

type errorResponse struct {
	Message string `json:"message"`
}

type conflictResponse struct {
	Message    string      `json:"message"`
	ServerTask domain.Task `json:"serverTask"`
}

func healthz() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}
}

func getTasks(store Reader, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		if _, err := auth.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization)); err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		tasks, err := store.ListTasks(c.Request().Context())
		if err != nil {
			c.Logger().Error(err)
			return c.JSON(http.StatusInternalServerError, errorResponse{Message: "internal server error"})
		}
		if tasks == nil {
			tasks = []domain.Task{}
		}
		return c.JSON(http.StatusOK, tasks)
	}
}

func getUsers(store Reader, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		if _, err := auth.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization)); err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		users, err := store.ListUsers(c.Request().Context())
		if err != nil {
			c.Logger().Error(err)
			return c.JSON(http.StatusInternalServerError, errorResponse{Message: "internal server error"})
		}
		if users == nil {
			users = []domain.User{}
		}
		return c.JSON(http.StatusOK, users)
	}
}

func postTask(b Board, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		var req createTaskRequest
		if err := decodeBody(c, &req); err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Message: "invalid body"})
		}
		task, err := b.Create(c.Request().Context(), userID, req.Title, req.Description, domain.Priority(req.Priority))
		if err != nil {
			return writeBoardError(c, err)
		}
		return c.JSON(http.StatusCreated, task)
	}
}

func putTask(b Board, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		var req updateTaskRequest
		if err := decodeBody(c, &req); err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Message: "invalid body"})
		}
		changes := board.TaskChanges{
			Title:        req.Title,
			Description:  req.Description,
			Priority:     domain.Priority(req.Priority),
			Status:       domain.Status(req.Status),
			AssignedUser: req.AssignedUser,
		}
		task, err := b.Update(c.Request().Context(), userID, c.Param("id"), changes, req.Version)
		if err != nil {
			return writeBoardError(c, err)
		}
		return c.JSON(http.StatusOK, task)
	}
}

func patchTaskStatus(b Board, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		var req statusRequest
		if err := decodeBody(c, &req); err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Message: "invalid body"})
		}
		task, err := b.ChangeStatus(c.Request().Context(), userID, c.Param("id"), domain.Status(req.Status))
		if err != nil {
			return writeBoardError(c, err)
		}
		return c.JSON(http.StatusOK, task)
	}
}

func deleteTask(b Board, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		if err := b.Delete(c.Request().Context(), userID, c.Param("id")); err != nil {
			return writeBoardError(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func assignTask(b Board, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		task, err := b.SmartAssign(c.Request().Context(), userID, c.Param("id"))
		if err != nil {
			return writeBoardError(c, err)
		}
		return c.JSON(http.StatusOK, task)
	}
}

// streamEvents serves the live board stream over SSE. Auth accepts the
// token query parameter as a fallback because EventSource cannot set
// headers.
func streamEvents(auth Authenticator, hub *stream.Hub, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
		if authHeader == "" {
			if token := c.QueryParam("token"); token != "" {
				authHeader = "Bearer " + token
			}
		}
		if _, err := auth.UserIDFromAuthHeader(authHeader); err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}

		c.Response().Header().Set(echo.HeaderContentType, "text/event-stream")
		c.Response().Header().Set(echo.HeaderCacheControl, "no-cache")
		c.Response().Header().Set(echo.HeaderConnection, "keep-alive")
		c.Response().Header().Set("X-Accel-Buffering", "no")
		flusher, ok := c.Response().Writer.(http.Flusher)
		if !ok {
			return c.String(http.StatusInternalServerError, "stream unsupported")
		}
		c.Response().WriteHeader(http.StatusOK)
		flusher.Flush()

		session := hub.Register(c.QueryParam("name"))
		defer hub.Unregister(session)

		ctx := c.Request().Context()
		for {
			select {
			case <-ctx.Done():
				return nil
			case ev, open := <-session.Events:
				if !open {
					return nil
				}
				data, err := sonic.Marshal(ev)
				if err != nil {
					logger.Errorf("marshal event: %v", err)
					continue
				}
				if _, err := c.Response().Write([]byte("data: ")); err != nil {
					return nil
				}
				if _, err := c.Response().Write(data); err != nil {
					return nil
				}
				if _, err := c.Response().Write([]byte("\n\n")); err != nil {
					return nil
				}
				flusher.Flush()
			}
		}
	}
}

func decodeBody(c echo.Context, out any) error {
	lr := io.LimitReader(c.Request().Body, requestBodyMaxSize)
	dec := sonic.ConfigStd.NewDecoder(lr)
	dec.DisallowUnknownFields()
	return dec.Decode(out)
}

func writeBoardError(c echo.Context, err error) error {
	var conflict *domain.ConflictError
	switch {
	case errors.As(err, &conflict):
		return c.JSON(http.StatusConflict, conflictResponse{
			Message:    "Conflict detected! Task was updated by someone else.",
			ServerTask: conflict.ServerTask,
		})
	case errors.Is(err, domain.ErrNotFound):
		return c.JSON(http.StatusNotFound, errorResponse{Message: domain.ErrNotFound.Error()})
	case domain.IsValidation(err), errors.Is(err, domain.ErrNoUsersAvailable):
		return c.JSON(http.StatusBadRequest, errorResponse{Message: err.Error()})
	default:
		c.Logger().Error(err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Message: "internal server error"})
	}
}
