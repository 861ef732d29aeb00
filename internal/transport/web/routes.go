package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/avstrong/slotbooking/internal/booking"
	"github.com/avstrong/slotbooking/internal/identity"
)

const (
	idempotencyKeyHeader    = "Idempotency-Key"
	maxIdempotencyKeyLength = 255
)

type errorResponse struct {
	Error string `json:"error"`
}

type priceResponse struct {
	TimeSlot booking.TimeSlot `json:"time_slot"`
	Date     string           `json:"date"`
	Price    decimal.Decimal  `json:"price"`
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.l.LogErrorf("Could not encode response: %v", err.Error())
	}
}

// writeError maps manager errors onto HTTP statuses. Storage and unknown
// failures are reported with a generic text only.
func (s *Server) writeError(w http.ResponseWriter, op string, err error) {
	if inputErr := booking.IsInputError(err); inputErr != nil {
		s.writeJSON(w, http.StatusBadRequest, inputErr.Fields())

		return
	}

	if overpaymentErr := booking.IsOverpaymentError(err); overpaymentErr != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: overpaymentErr.Error()})

		return
	}

	if notFoundErr := booking.IsNotFoundError(err); notFoundErr != nil {
		s.writeJSON(w, http.StatusNotFound, errorResponse{Error: notFoundErr.Error()})

		return
	}

	if errors.Is(err, booking.ErrTransactionExists) {
		s.writeJSON(w, http.StatusConflict, errorResponse{Error: booking.ErrTransactionExists.Error()})

		return
	}

	if errors.Is(err, booking.ErrIdempotencyReused) {
		s.writeJSON(w, http.StatusConflict, errorResponse{Error: booking.ErrIdempotencyReused.Error()})

		return
	}

	s.l.LogErrorf("Could not %s: %v", op, err.Error())
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

func (s *Server) slotPriceHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	date, err := time.Parse(time.DateOnly, query.Get("date"))
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string][]string{"date": {"use YYYY-MM-DD"}})

		return
	}

	price, err := s.bManager.ResolveSlotPrice(r.Context(), query.Get("time_slot"), date)
	if err != nil {
		s.writeError(w, "resolve slot price", err)

		return
	}

	s.writeJSON(w, http.StatusOK, priceResponse{
		TimeSlot: booking.TimeSlot(query.Get("time_slot")),
		Date:     date.Format(time.DateOnly),
		Price:    price,
	})
}

func (s *Server) openTransactionHandler(w http.ResponseWriter, r *http.Request) {
	var input booking.OpenInput

	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)

		return
	}

	actorID, _ := identity.UserIDFromContext(r.Context())

	trx, err := s.bManager.OpenTransaction(r.Context(), &input, actorID)
	if err != nil {
		s.writeError(w, "open transaction", err)

		return
	}

	s.writeJSON(w, http.StatusCreated, trx)
}

func (s *Server) amendTransactionHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := s.transactionID(w, r)
	if !ok {
		return
	}

	var input booking.AmendInput

	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)

		return
	}

	input.TransactionID = id
	ctx := r.Context()
	actorID, _ := identity.UserIDFromContext(ctx)

	if key := r.Header.Get(idempotencyKeyHeader); key != "" {
		if len(key) > maxIdempotencyKeyLength {
			s.writeJSON(w, http.StatusBadRequest, map[string][]string{
				idempotencyKeyHeader: {fmt.Sprintf("must be at most %d characters", maxIdempotencyKeyLength)},
			})

			return
		}

		ctx = booking.NewContextWithIdempotencyKey(ctx, key)
	}

	trx, err := s.bManager.AmendTransaction(ctx, &input, actorID)
	if err != nil {
		s.writeError(w, "amend transaction", err)

		return
	}

	s.writeJSON(w, http.StatusOK, trx)
}

func (s *Server) getTransactionHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := s.transactionID(w, r)
	if !ok {
		return
	}

	trx, err := s.bManager.GetTransaction(r.Context(), id)
	if err != nil {
		s.writeError(w, "get transaction", err)

		return
	}

	s.writeJSON(w, http.StatusOK, trx)
}

func (s *Server) transactionID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		s.writeJSON(w, http.StatusBadRequest, map[string][]string{"id": {"must be a positive integer"}})

		return 0, false
	}

	return id, true
}

func (s *Server) registerHandler(w http.ResponseWriter, r *http.Request) {
	var req registerRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)

		return
	}

	u, err := s.users.Register(r.Context(), req.Username, req.Email, req.Password)

	switch {
	case errors.Is(err, identity.ErrInvalidInput):
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, identity.ErrEmailTaken):
		s.writeJSON(w, http.StatusConflict, errorResponse{Error: identity.ErrEmailTaken.Error()})
	case err != nil:
		s.l.LogErrorf("Could not register user: %v", err.Error())
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	default:
		s.writeJSON(w, http.StatusCreated, u)
	}
}

func (s *Server) loginHandler(w http.ResponseWriter, r *http.Request) {
	var req loginRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)

		return
	}

	token, _, err := s.users.Login(r.Context(), req.Email, req.Password)
	if errors.Is(err, identity.ErrInvalidCredentials) {
		s.writeJSON(w, http.StatusUnauthorized, errorResponse{Error: err.Error()})

		return
	}

	if err != nil {
		s.l.LogErrorf("Could not login: %v", err.Error())
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)

		return
	}

	//nolint:exhaustruct
	http.SetCookie(w, &http.Cookie{
		Name:     accessTokenCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(s.conf.CookieTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	s.writeJSON(w, http.StatusOK, loginResponse{AccessToken: token, TokenType: "bearer"})
}

// logoutHandler expires the access_token cookie. Bearer tokens stay valid
// until they expire.
func (s *Server) logoutHandler(w http.ResponseWriter, _ *http.Request) {
	//nolint:exhaustruct
	http.SetCookie(w, &http.Cookie{
		Name:     accessTokenCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) livenessHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) addRoutes(r *http.ServeMux) {
	public := func(h http.HandlerFunc) http.Handler {
		return s.applyMiddlewares(h, s.loggerMiddleware(), s.recoverMiddleware())
	}

	private := func(h http.HandlerFunc) http.Handler {
		return s.applyMiddlewares(h, s.authMiddleware(), s.loggerMiddleware(), s.recoverMiddleware())
	}

	r.Handle("POST /api/register", public(s.registerHandler))
	r.Handle("POST /api/login", public(s.loginHandler))
	r.Handle("POST /api/logout", public(s.logoutHandler))
	r.Handle("GET /api/slot-prices", private(s.slotPriceHandler))
	r.Handle("POST /api/transactions", private(s.openTransactionHandler))
	r.Handle("PATCH /api/transactions/{id}", private(s.amendTransactionHandler))
	r.Handle("GET /api/transactions/{id}", private(s.getTransactionHandler))
	r.Handle(fmt.Sprintf("GET %s", s.conf.LivenessEndpoint), public(s.livenessHandler))
}
