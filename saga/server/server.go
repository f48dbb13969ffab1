// Package server exposes the saga's HTTP surface: starting a transfer
// saga and querying its recorded state.
package server

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/LerianStudio/lib-saga/saga"
	"github.com/LerianStudio/lib-saga/saga/log"
	"github.com/LerianStudio/lib-saga/saga/repository"
)

var (
	// ErrNilStore is returned when a server is built without a
	// transaction store.
	ErrNilStore = errors.New("transaction store is required")
	// ErrNilStarter is returned when a server is built without a saga
	// starter.
	ErrNilStarter = errors.New("saga starter is required")
)

// Starter launches the orchestration for a saved transaction. Launch
// failures surface to the API caller; the saga's own outcome does not.
type Starter interface {
	Start(ctx context.Context, transaction saga.Transaction) error
}

// StarterFunc adapts a plain function to the Starter interface.
type StarterFunc func(ctx context.Context, transaction saga.Transaction) error

// Start implements Starter.
func (f StarterFunc) Start(ctx context.Context, transaction saga.Transaction) error {
	return f(ctx, transaction)
}

// Server is the HTTP front of a saga deployment.
type Server struct {
	app     *fiber.App
	store   repository.TransactionStore
	starter Starter
	logger  log.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets a structured logger for the server.
func WithLogger(logger log.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates the server and registers its routes.
func New(store repository.TransactionStore, starter Starter, opts ...Option) (*Server, error) {
	if store == nil {
		return nil, ErrNilStore
	}

	if starter == nil {
		return nil, ErrNilStarter
	}

	s := &Server{
		app:     fiber.New(fiber.Config{DisableStartupMessage: true}),
		store:   store,
		starter: starter,
		logger:  log.NewNop(),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	s.app.Post("/v1/sagas/start", s.startSaga)
	s.app.Get("/v1/sagas/:id/state", s.sagaState)

	return s, nil
}

// App exposes the underlying fiber application, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves until Shutdown is called.
func (s *Server) Listen(address string) error {
	return s.app.Listen(address)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

type startRequest struct {
	ID            string          `json:"id"`
	AccountFromID string          `json:"accountFromId"`
	AccountToID   string          `json:"accountToId"`
	Amount        decimal.Decimal `json:"amount"`
}

type sagaResponse struct {
	ID    string     `json:"id"`
	State saga.State `json:"state"`
}

type errorResponse struct {
	Message string `json:"message"`
}

func (s *Server) startSaga(c *fiber.Ctx) error {
	var request startRequest
	if err := c.BodyParser(&request); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(errorResponse{Message: "invalid request body"})
	}

	if request.ID == "" {
		request.ID = uuid.NewString()
	}

	transaction, err := saga.NewTransaction(request.ID, request.AccountFromID, request.AccountToID, request.Amount)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(errorResponse{Message: err.Error()})
	}

	ctx := c.UserContext()

	if err := s.store.Save(ctx, transaction); err != nil {
		s.logger.Log(ctx, log.LevelError, "transaction save failed",
			log.String("transaction_id", transaction.ID),
			log.Err(err),
		)

		return c.Status(fiber.StatusInternalServerError).JSON(errorResponse{Message: "could not save transaction"})
	}

	if err := s.starter.Start(ctx, transaction); err != nil {
		s.logger.Log(ctx, log.LevelError, "saga start failed",
			log.String("transaction_id", transaction.ID),
			log.Err(err),
		)

		return c.Status(fiber.StatusInternalServerError).JSON(errorResponse{Message: "could not start saga"})
	}

	s.logger.Log(ctx, log.LevelInfo, "saga started",
		log.String("transaction_id", transaction.ID),
	)

	return c.Status(fiber.StatusAccepted).JSON(sagaResponse{ID: transaction.ID, State: transaction.State})
}

func (s *Server) sagaState(c *fiber.Ctx) error {
	id := c.Params("id")

	transaction, err := s.store.FindByID(c.UserContext(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(errorResponse{Message: "transaction not found"})
		}

		return c.Status(fiber.StatusInternalServerError).JSON(errorResponse{Message: "could not load transaction"})
	}

	return c.JSON(sagaResponse{ID: transaction.ID, State: transaction.State})
}
