package webui

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/0xSaurabhSharma/code-correction-agent/core/guard"
	"github.com/0xSaurabhSharma/code-correction-agent/core/history"
	"github.com/0xSaurabhSharma/code-correction-agent/core/memory"
	"github.com/0xSaurabhSharma/code-correction-agent/core/types"
	"github.com/0xSaurabhSharma/code-correction-agent/core/workflow"
	fiber "github.com/gofiber/fiber/v2"
	"github.com/mudler/xlog"
)

const (
	welcomeMessage  = "Welcome to the Self-Healing Code Agent API!"
	maliciousDetail = "The provided code snippet was flagged as potentially malicious and cannot be executed."
)

type (
	App struct {
		config *Config
		*fiber.App
	}

	// RunRequest is the body of POST /run_agent.
	RunRequest struct {
		FunctionString string `json:"function_string"`
		Arguments      []any  `json:"arguments"`
	}
)

func NewApp(opts ...Option) *App {
	config := NewConfig(opts...)

	webapp := fiber.New(fiber.Config{
		AppName: "heal",
	})

	a := &App{
		config: config,
		App:    webapp,
	}

	a.registerRoutes(webapp)

	return a
}

func detailJSON(c *fiber.Ctx, status int, detail string) error {
	return c.Status(status).JSON(fiber.Map{
		"detail": detail,
	})
}

func (app *App) RunAgent() func(c *fiber.Ctx) error {
	return func(c *fiber.Ctx) error {
		payload := RunRequest{}
		if err := c.BodyParser(&payload); err != nil {
			return detailJSON(c, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		}
		if strings.TrimSpace(payload.FunctionString) == "" {
			return detailJSON(c, http.StatusBadRequest, "function_string is required")
		}
		if app.config.Workflow == nil {
			return detailJSON(c, http.StatusServiceUnavailable, "Repair workflow is not configured")
		}
		if payload.Arguments == nil {
			payload.Arguments = []any{}
		}

		xlog.Info("Received request to run agent", "arguments", payload.Arguments)

		ctx, cancel := context.WithTimeout(context.Background(), app.config.RunTimeout)
		defer cancel()

		if app.config.Guard != nil {
			if err := app.config.Guard.Check(ctx, payload.FunctionString); err != nil {
				if errors.Is(err, guard.ErrUnsafe) {
					xlog.Error("Malicious code detected, denying request", "error", err)
					return detailJSON(c, http.StatusForbidden, maliciousDetail)
				}
				xlog.Error("Guardrail check failed", "error", err)
				return detailJSON(c, http.StatusInternalServerError, fmt.Sprintf("Guardrail check failed: %v", err))
			}
		}

		fn, err := app.config.Sandbox.Compile(ctx, payload.FunctionString)
		if err != nil {
			xlog.Error("Error compiling function string", "error", err)
			return detailJSON(c, http.StatusBadRequest, fmt.Sprintf("Error compiling function string: %v", err))
		}

		started := time.Now()
		state, err := app.config.Workflow.Run(ctx, fn, payload.FunctionString, payload.Arguments)
		app.record(state, payload.FunctionString, started)

		if err != nil && !errors.Is(err, workflow.ErrCouldNotRepair) {
			xlog.Error("Agent workflow failed", "run", state.RunID, "error", err)
			return c.Status(http.StatusInternalServerError).JSON(fiber.Map{
				"detail": fmt.Sprintf("An error occurred during agent workflow execution: %v", err),
				"state":  state,
			})
		}

		xlog.Info("Agent workflow completed", "run", state.RunID, "status", state.Status)
		return c.JSON(state)
	}
}

func (app *App) record(state *types.RepairState, source string, started time.Time) {
	if app.config.History == nil || state == nil {
		return
	}
	if err := app.config.History.Save(history.NewRecord(state, source, started)); err != nil {
		xlog.Error("Could not save run", "run", state.RunID, "error", err)
	}
}

func (app *App) ListRuns() func(c *fiber.Ctx) error {
	return func(c *fiber.Ctx) error {
		if app.config.History == nil {
			return c.JSON(fiber.Map{"runs": []*history.RunRecord{}})
		}

		var runs []*history.RunRecord
		if fn := c.Query("function"); fn != "" {
			runs = app.config.History.ByFunction(fn)
		} else {
			runs = app.config.History.List(c.QueryInt("limit", 50))
		}
		return c.JSON(fiber.Map{"runs": runs})
	}
}

func (app *App) GetRun() func(c *fiber.Ctx) error {
	return func(c *fiber.Ctx) error {
		if app.config.History == nil {
			return detailJSON(c, http.StatusNotFound, "Run history is disabled")
		}

		run, err := app.config.History.Get(c.Params("id"))
		if err != nil {
			if errors.Is(err, history.ErrNotFound) {
				return detailJSON(c, http.StatusNotFound, "Run not found")
			}
			return detailJSON(c, http.StatusInternalServerError, err.Error())
		}
		return c.JSON(run)
	}
}

func (app *App) SearchMemory() func(c *fiber.Ctx) error {
	return func(c *fiber.Ctx) error {
		if app.config.Memory == nil {
			return detailJSON(c, http.StatusServiceUnavailable, "Memory store is not initialized")
		}

		query := c.Query("q")
		if query == "" {
			return detailJSON(c, http.StatusBadRequest, "q is required")
		}
		k, err := strconv.Atoi(c.Query("k", strconv.Itoa(memory.DefaultSearchLimit)))
		if err != nil || k < 1 {
			return detailJSON(c, http.StatusBadRequest, "k must be a positive integer")
		}

		matches, err := app.config.Memory.Search(c.UserContext(), query, k)
		if err != nil {
			return detailJSON(c, http.StatusInternalServerError, err.Error())
		}
		return c.JSON(fiber.Map{"matches": matches})
	}
}
