package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"sort"
	"strings"
	"sync"
	"testing"

	"campuspay/internal/adminview"
	"campuspay/internal/auth"
	"campuspay/internal/config"
	"campuspay/internal/logging"
	"campuspay/internal/middleware"
	"campuspay/internal/model"
	"campuspay/internal/reconcile"
	"campuspay/internal/store"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	logging.Logg = logging.NewLogger("error")
	os.Exit(m.Run())
}

// fakeStore backs the whole handler surface in memory, mirroring the
// database store's uniqueness and removability rules.
type fakeStore struct {
	mu        sync.Mutex
	nextID    int64
	nextRegID int64
	users     map[int64]*model.User
	events    []model.Event
	records   map[int64]model.PaymentRecord
	regs      []model.Registration
	dbDown    bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:   map[int64]*model.User{},
		records: map[int64]model.PaymentRecord{},
	}
}

func (f *fakeStore) CreateUser(ctx context.Context, user *model.User) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if strings.EqualFold(u.USN, user.USN) || u.Email == user.Email {
			return 0, store.ErrDuplicateUser
		}
	}
	f.nextID++
	u := *user
	u.ID = f.nextID
	f.users[u.ID] = &u
	return u.ID, nil
}

func (f *fakeStore) GetUserByUSN(ctx context.Context, usn string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if strings.EqualFold(u.USN, usn) {
			copied := *u
			return &copied, nil
		}
	}
	return nil, store.ErrUserNotFound
}

func (f *fakeStore) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, store.ErrUserNotFound
	}
	copied := *u
	return &copied, nil
}

func (f *fakeStore) UpdateProfile(ctx context.Context, id int64, patch *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return store.ErrUserNotFound
	}
	if patch.Name != "" {
		u.Name = patch.Name
	}
	if patch.Email != "" {
		u.Email = patch.Email
	}
	if patch.DOB != "" {
		u.DOB = patch.DOB
	}
	if patch.Phone != "" {
		u.Phone = patch.Phone
	}
	if patch.Address != "" {
		u.Address = patch.Address
	}
	if patch.Department != "" {
		u.Department = patch.Department
	}
	if patch.Year != "" {
		u.Year = patch.Year
	}
	if patch.Section != "" {
		u.Section = patch.Section
	}
	return nil
}

func (f *fakeStore) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return store.ErrUserNotFound
	}
	u.PasswordHash = passwordHash
	return nil
}

func (f *fakeStore) ListStudents(ctx context.Context) ([]model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var students []model.User
	for _, u := range f.users {
		if u.Role == model.RoleStudent {
			students = append(students, *u)
		}
	}
	sort.Slice(students, func(i, j int) bool {
		return strings.ToLower(students[i].USN) < strings.ToLower(students[j].USN)
	})
	return students, nil
}

func (f *fakeStore) CreateEvent(ctx context.Context, e *model.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, *e)
	return nil
}

func (f *fakeStore) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.events {
		if f.events[i].ID == id || (f.events[i].LegacyID != "" && f.events[i].LegacyID == id) {
			e := f.events[i]
			return &e, nil
		}
	}
	return nil, store.ErrEventNotFound
}

func (f *fakeStore) ListEvents(ctx context.Context) ([]model.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Event(nil), f.events...), nil
}

func (f *fakeStore) UpdateEvent(ctx context.Context, id string, patch *model.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.events {
		if f.events[i].ID == id {
			patch.ID = id
			patch.LegacyID = f.events[i].LegacyID
			patch.CreatedBy = f.events[i].CreatedBy
			patch.CreatedAt = f.events[i].CreatedAt
			f.events[i] = *patch
			return nil
		}
	}
	return store.ErrEventNotFound
}

func (f *fakeStore) DeleteEvent(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.events {
		if f.events[i].ID == id {
			f.events = append(f.events[:i], f.events[i+1:]...)
			return nil
		}
	}
	return store.ErrEventNotFound
}

func (f *fakeStore) record(userID int64) model.PaymentRecord {
	if r, ok := f.records[userID]; ok {
		return r
	}
	return model.NewPaymentRecord()
}

func refMatches(c *model.Claim, ref string) bool {
	if c.EventRef() == ref || (c.PlainRef != "" && c.PlainRef == ref) {
		return true
	}
	return c.LegacyRef != nil && c.LegacyRef.String() == ref
}

func (f *fakeStore) GetPayments(ctx context.Context, userID int64) (model.PaymentRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.record(userID), nil
}

func (f *fakeStore) InsertClaim(ctx context.Context, userID int64, cat model.Category, c model.Claim) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec := f.record(userID)
	for i := range rec.Sequence(cat) {
		if refMatches(&rec.Sequence(cat)[i], c.EventRef()) {
			return store.ErrClaimExists
		}
	}
	if cat == model.CategoryMandatory {
		rec.Mandatory = append(rec.Mandatory, c)
	} else {
		rec.Optional = append(rec.Optional, c)
	}
	f.records[userID] = rec
	return nil
}

func (f *fakeStore) RemoveClaim(ctx context.Context, userID int64, cat model.Category, ref string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec := f.record(userID)
	seq := rec.Sequence(cat)
	for i := range seq {
		if !refMatches(&seq[i], ref) {
			continue
		}
		if seq[i].Paid || seq[i].EffectiveStatus() != model.StatusAdded {
			return store.ErrClaimNotRemovable
		}
		seq = append(seq[:i], seq[i+1:]...)
		if cat == model.CategoryMandatory {
			rec.Mandatory = seq
		} else {
			rec.Optional = seq
		}
		f.records[userID] = rec
		return nil
	}
	return store.ErrClaimNotFound
}

func (f *fakeStore) UpdateRecord(ctx context.Context, userID int64, mutate func(*model.PaymentRecord) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec := f.record(userID)
	if err := mutate(&rec); err != nil {
		return err
	}
	f.records[userID] = rec
	return nil
}

func (f *fakeStore) UpdateClaim(ctx context.Context, userID int64, cat model.Category, ref string, mutate func(*model.Claim) error) (model.Claim, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec := f.record(userID)
	seq := rec.Sequence(cat)
	for i := range seq {
		if !refMatches(&seq[i], ref) {
			continue
		}
		c := seq[i]
		if err := mutate(&c); err != nil {
			return model.Claim{}, err
		}
		seq[i] = c
		f.records[userID] = rec
		return c, nil
	}
	return model.Claim{}, store.ErrClaimNotFound
}

func (f *fakeStore) CreateRegistration(ctx context.Context, reg *model.Registration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextRegID++
	reg.ID = f.nextRegID
	f.regs = append(f.regs, *reg)
	return nil
}

func (f *fakeStore) ListRegistrationsByUser(ctx context.Context, userID int64) ([]model.Registration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var regs []model.Registration
	for _, reg := range f.regs {
		if reg.UserID == userID {
			regs = append(regs, reg)
		}
	}
	return regs, nil
}

func (f *fakeStore) ListRegistrations(ctx context.Context) ([]model.Registration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Registration(nil), f.regs...), nil
}

func (f *fakeStore) Ping(ctx context.Context) error {
	if f.dbDown {
		return store.ErrStorageUnavailable
	}
	return nil
}

const (
	examFeeID  = "9f0c1a2b-3d4e-5f60-7182-93a4b5c6d7e8"
	techFestID = "0a1b2c3d-4e5f-6071-8293-a4b5c6d7e8f9"
)

func newTestServer() (*chi.Mux, *Server, *fakeStore) {
	cfg := config.Config{Address: "localhost:8080", JWTSecret: "test-secret"}
	fs := newFakeStore()
	fs.events = []model.Event{
		{ID: examFeeID, Category: model.CategoryMandatory, Title: "Exam Fee", Amount: 150000},
		{ID: techFestID, Category: model.CategoryOptional, Title: "Tech Fest", Amount: 50000, PayeeUPI: "fest@upi"},
	}

	server := &Server{
		Config:        cfg,
		Users:         fs,
		Events:        fs,
		Registrations: fs,
		Reconcile:     reconcile.NewService(fs, fs),
		View:          adminview.New(fs, fs, fs),
		DB:            fs,
	}

	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", server.Health)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", server.RegisterUser)
			r.Post("/login", server.LoginUser)
		})

		r.Route("/events", func(r chi.Router) {
			r.Get("/", server.ListEvents)
			r.Get("/{id}", server.GetEvent)

			r.Group(func(r chi.Router) {
				r.Use(middleware.Auth(cfg.JWTSecret), middleware.RequireAdmin)
				r.Post("/", server.CreateEvent)
				r.Put("/{id}", server.UpdateEvent)
				r.Delete("/{id}", server.DeleteEvent)
			})
		})

		r.Route("/registrations", func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWTSecret))
			r.Post("/", server.CreateRegistration)
			r.Get("/", server.ListMyRegistrations)
		})

		r.Route("/user", func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWTSecret))
			r.Get("/profile", server.GetProfile)
			r.Put("/profile", server.UpdateProfile)
			r.Put("/change-password", server.ChangePassword)

			r.Get("/payments", server.GetPayments)
			r.Post("/payments/select", server.SelectEvent)
			r.Delete("/payments/optional/{ref}", server.RemoveFromCart)
			r.Post("/payments/submit", server.SubmitProof)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWTSecret), middleware.RequireAdmin)
			r.Get("/pending-payments", server.PendingPayments)
			r.Put("/confirm-payment", server.ConfirmPayment)
			r.Get("/payment-summary", server.PaymentSummary)
			r.Get("/event-payments/{eventId}", server.EventPayments)
			r.Get("/students-payments", server.StudentsPayments)
			r.Get("/registrations", server.AdminRegistrations)
		})
	})
	return r, server, fs
}

func seedUser(t *testing.T, server *Server, fs *fakeStore, usn string, role model.Role) (*model.User, string) {
	t.Helper()
	hash, err := auth.HashPassword("01012003")
	require.NoError(t, err)

	user := &model.User{USN: usn, Email: usn + "@college.test", Name: "Test " + usn, Role: role, PasswordHash: hash}
	id, err := fs.CreateUser(context.Background(), user)
	require.NoError(t, err)
	user.ID = id

	token, err := auth.GenerateToken(server.Config.JWTSecret, user)
	require.NoError(t, err)
	return user, token
}

func doJSON(t *testing.T, r http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func TestRegisterUser(t *testing.T) {
	t.Run("successful registration", func(t *testing.T) {
		r, _, _ := newTestServer()

		rr := doJSON(t, r, http.MethodPost, "/api/auth/register", "", map[string]string{
			"usn":      "1AB21CS001",
			"email":    "asha@college.test",
			"password": "01012003",
			"name":     "Asha",
		})
		require.Equal(t, http.StatusOK, rr.Code)
		assert.True(t, strings.HasPrefix(rr.Header().Get("Authorization"), "Bearer "))

		var resp authResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.NotEmpty(t, resp.Token)
		require.NotNil(t, resp.User)
		assert.Equal(t, model.RoleStudent, resp.User.Role)
		assert.NotZero(t, resp.User.ID)
	})

	t.Run("invalid request format", func(t *testing.T) {
		r, _, _ := newTestServer()

		req := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader("invalid-json"))
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("missing fields", func(t *testing.T) {
		r, _, _ := newTestServer()

		rr := doJSON(t, r, http.MethodPost, "/api/auth/register", "", map[string]string{
			"usn": "1AB21CS001",
		})
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("admin registration is forbidden", func(t *testing.T) {
		r, _, _ := newTestServer()

		rr := doJSON(t, r, http.MethodPost, "/api/auth/register", "", map[string]string{
			"usn":      "1AB21CS001",
			"email":    "asha@college.test",
			"password": "01012003",
			"name":     "Asha",
			"role":     "admin",
		})
		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("usn already taken, case-insensitive", func(t *testing.T) {
		r, server, fs := newTestServer()
		seedUser(t, server, fs, "1AB21CS001", model.RoleStudent)

		rr := doJSON(t, r, http.MethodPost, "/api/auth/register", "", map[string]string{
			"usn":      "1ab21cs001",
			"email":    "other@college.test",
			"password": "01012003",
			"name":     "Asha",
		})
		assert.Equal(t, http.StatusConflict, rr.Code)
	})
}

func TestLoginUser(t *testing.T) {
	t.Run("successful login", func(t *testing.T) {
		r, server, fs := newTestServer()
		seedUser(t, server, fs, "1AB21CS001", model.RoleStudent)

		rr := doJSON(t, r, http.MethodPost, "/api/auth/login", "", map[string]string{
			"usn":      "1ab21cs001",
			"password": "01012003",
		})
		require.Equal(t, http.StatusOK, rr.Code)

		var resp authResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.NotEmpty(t, resp.Token)
	})

	t.Run("legacy clients send the usn in the email field", func(t *testing.T) {
		r, server, fs := newTestServer()
		seedUser(t, server, fs, "1AB21CS001", model.RoleStudent)

		rr := doJSON(t, r, http.MethodPost, "/api/auth/login", "", map[string]string{
			"email":    "1AB21CS001",
			"password": "01012003",
		})
		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("wrong password", func(t *testing.T) {
		r, server, fs := newTestServer()
		seedUser(t, server, fs, "1AB21CS001", model.RoleStudent)

		rr := doJSON(t, r, http.MethodPost, "/api/auth/login", "", map[string]string{
			"usn":      "1AB21CS001",
			"password": "02022003",
		})
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("role mismatch", func(t *testing.T) {
		r, server, fs := newTestServer()
		seedUser(t, server, fs, "1AB21CS001", model.RoleStudent)

		rr := doJSON(t, r, http.MethodPost, "/api/auth/login", "", map[string]string{
			"usn":      "1AB21CS001",
			"password": "01012003",
			"role":     "admin",
		})
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}

func TestHealth(t *testing.T) {
	r, _, fs := newTestServer()

	rr := doJSON(t, r, http.MethodGet, "/api/health", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["dbConnected"])

	fs.dbDown = true
	rr = doJSON(t, r, http.MethodGet, "/api/health", "", nil)
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, false, resp["dbConnected"])
}

func TestAuthorization(t *testing.T) {
	r, server, fs := newTestServer()
	_, studentToken := seedUser(t, server, fs, "1AB21CS001", model.RoleStudent)

	t.Run("no token", func(t *testing.T) {
		rr := doJSON(t, r, http.MethodGet, "/api/user/payments", "", nil)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("garbage token", func(t *testing.T) {
		rr := doJSON(t, r, http.MethodGet, "/api/user/payments", "not-a-token", nil)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("student on an admin route", func(t *testing.T) {
		rr := doJSON(t, r, http.MethodGet, "/api/admin/pending-payments", studentToken, nil)
		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("student creating an event", func(t *testing.T) {
		rr := doJSON(t, r, http.MethodPost, "/api/events/", studentToken, map[string]any{
			"type": "optional", "title": "Rogue", "amount": 100, "payeeUpiId": "x@upi",
		})
		assert.Equal(t, http.StatusForbidden, rr.Code)
	})
}

func TestPaymentsFlow(t *testing.T) {
	r, server, fs := newTestServer()
	student, studentToken := seedUser(t, server, fs, "1AB21CS001", model.RoleStudent)
	_, adminToken := seedUser(t, server, fs, "ADMIN01", model.RoleAdmin)

	// select a mandatory event
	rr := doJSON(t, r, http.MethodPost, "/api/user/payments/select", studentToken, map[string]any{
		"type":  "mandatory",
		"event": examFeeID,
	})
	require.Equal(t, http.StatusOK, rr.Code)

	var selected struct {
		Claim model.Claim `json:"claim"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &selected))
	assert.Equal(t, examFeeID, selected.Claim.PlainRef)
	assert.Equal(t, model.StatusAdded, selected.Claim.Status)

	// submit proof for the basket
	rr = doJSON(t, r, http.MethodPost, "/api/user/payments/submit", studentToken, map[string]any{
		"items": []map[string]string{
			{"id": examFeeID, "utr": "UTR123456789", "screenshot": "exam.png"},
		},
	})
	require.Equal(t, http.StatusOK, rr.Code)

	// the claim shows up in the admin review queue
	rr = doJSON(t, r, http.MethodGet, "/api/admin/pending-payments", adminToken, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var queue struct {
		PendingPayments []adminview.PendingPayment `json:"pendingPayments"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &queue))
	require.Len(t, queue.PendingPayments, 1)
	assert.Equal(t, student.ID, queue.PendingPayments[0].StudentID)
	assert.Equal(t, "UTR123456789", queue.PendingPayments[0].UTR)

	// confirm it
	rr = doJSON(t, r, http.MethodPut, "/api/admin/confirm-payment", adminToken, map[string]any{
		"studentId": student.ID,
		"paymentId": examFeeID,
		"status":    "confirmed",
		"eventType": "mandatory",
	})
	require.Equal(t, http.StatusOK, rr.Code)

	var decided struct {
		Success bool        `json:"success"`
		Payment model.Claim `json:"payment"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &decided))
	assert.True(t, decided.Success)
	assert.Equal(t, model.StatusConfirmed, decided.Payment.Status)
	assert.NotEmpty(t, decided.Payment.ConfirmedBy)

	// a second decision conflicts
	rr = doJSON(t, r, http.MethodPut, "/api/admin/confirm-payment", adminToken, map[string]any{
		"studentId": student.ID,
		"paymentId": examFeeID,
		"status":    "rejected",
		"eventType": "mandatory",
	})
	assert.Equal(t, http.StatusConflict, rr.Code)

	// the student sees the confirmed claim
	rr = doJSON(t, r, http.MethodGet, "/api/user/payments", studentToken, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var mine struct {
		Payments model.PaymentRecord `json:"payments"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &mine))
	require.Len(t, mine.Payments.Mandatory, 1)
	assert.Equal(t, model.StatusConfirmed, mine.Payments.Mandatory[0].Status)
	assert.True(t, mine.Payments.Mandatory[0].Paid)

	// and the summary counts it
	rr = doJSON(t, r, http.MethodGet, "/api/admin/payment-summary", adminToken, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var summary adminview.Summary
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &summary))
	assert.Equal(t, 1, summary.TotalConfirmedClaims)
	assert.Equal(t, int64(150000), summary.TotalConfirmedAmount)
}

func TestSelectEvent(t *testing.T) {
	r, server, fs := newTestServer()
	_, studentToken := seedUser(t, server, fs, "1AB21CS001", model.RoleStudent)

	t.Run("wrapped reference", func(t *testing.T) {
		rr := doJSON(t, r, http.MethodPost, "/api/user/payments/select", studentToken, map[string]any{
			"type":  "optional",
			"event": map[string]string{"$oid": techFestID},
		})
		require.Equal(t, http.StatusOK, rr.Code)

		var resp struct {
			Claim model.Claim `json:"claim"`
		}
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Equal(t, techFestID, resp.Claim.PlainRef)
	})

	t.Run("malformed reference", func(t *testing.T) {
		rr := doJSON(t, r, http.MethodPost, "/api/user/payments/select", studentToken, map[string]any{
			"type":  "optional",
			"event": 12345,
		})
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("category mismatch", func(t *testing.T) {
		rr := doJSON(t, r, http.MethodPost, "/api/user/payments/select", studentToken, map[string]any{
			"type":  "mandatory",
			"event": techFestID,
		})
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("unknown event", func(t *testing.T) {
		rr := doJSON(t, r, http.MethodPost, "/api/user/payments/select", studentToken, map[string]any{
			"type":  "optional",
			"event": "no-such-event",
		})
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestRemoveFromCart(t *testing.T) {
	r, server, fs := newTestServer()
	_, studentToken := seedUser(t, server, fs, "1AB21CS001", model.RoleStudent)

	rr := doJSON(t, r, http.MethodPost, "/api/user/payments/select", studentToken, map[string]any{
		"type":  "optional",
		"event": techFestID,
	})
	require.Equal(t, http.StatusOK, rr.Code)

	rr = doJSON(t, r, http.MethodDelete, "/api/user/payments/optional/"+techFestID, studentToken, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = doJSON(t, r, http.MethodDelete, "/api/user/payments/optional/"+techFestID, studentToken, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestEventCRUD(t *testing.T) {
	r, server, fs := newTestServer()
	_, adminToken := seedUser(t, server, fs, "ADMIN01", model.RoleAdmin)

	rr := doJSON(t, r, http.MethodPost, "/api/events/", adminToken, map[string]any{
		"type":        "optional",
		"title":       "Sports Meet",
		"amount":      20000,
		"payeeName":   "Sports Club",
		"payeeUpiId":  "sports@upi",
		"targetClass": "CS",
	})
	require.Equal(t, http.StatusOK, rr.Code)

	var created model.Event
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))
	assert.NotEmpty(t, created.ID)
	assert.NotEmpty(t, created.CreatedBy)

	t.Run("optional event needs a payee upi", func(t *testing.T) {
		rr := doJSON(t, r, http.MethodPost, "/api/events/", adminToken, map[string]any{
			"type":   "optional",
			"title":  "No UPI",
			"amount": 100,
		})
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("listing is public", func(t *testing.T) {
		rr := doJSON(t, r, http.MethodGet, "/api/events/", "", nil)
		require.Equal(t, http.StatusOK, rr.Code)

		var events []model.Event
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &events))
		assert.Len(t, events, 3)
	})

	t.Run("update and delete", func(t *testing.T) {
		rr := doJSON(t, r, http.MethodPut, "/api/events/"+created.ID, adminToken, map[string]any{
			"type":       "optional",
			"title":      "Sports Meet 2026",
			"amount":     25000,
			"payeeUpiId": "sports@upi",
		})
		assert.Equal(t, http.StatusOK, rr.Code)

		rr = doJSON(t, r, http.MethodDelete, "/api/events/"+created.ID, adminToken, nil)
		assert.Equal(t, http.StatusOK, rr.Code)

		rr = doJSON(t, r, http.MethodGet, "/api/events/"+created.ID, "", nil)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestRegistrations(t *testing.T) {
	r, server, fs := newTestServer()
	student, studentToken := seedUser(t, server, fs, "1AB21CS001", model.RoleStudent)
	_, otherToken := seedUser(t, server, fs, "1AB21CS002", model.RoleStudent)
	_, adminToken := seedUser(t, server, fs, "ADMIN01", model.RoleAdmin)

	t.Run("booking snapshots events and totals server side", func(t *testing.T) {
		rr := doJSON(t, r, http.MethodPost, "/api/registrations/", studentToken, map[string]any{
			"events":        []any{examFeeID, map[string]string{"$oid": techFestID}},
			"paymentMethod": "upi",
		})
		require.Equal(t, http.StatusOK, rr.Code)

		var reg model.Registration
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &reg))
		assert.NotZero(t, reg.ID)
		assert.Equal(t, student.ID, reg.UserID)
		assert.Equal(t, model.RegistrationConfirmed, reg.Status)
		assert.Equal(t, int64(200000), reg.TotalAmount)
		require.Len(t, reg.Events, 2)
		assert.Equal(t, examFeeID, reg.Events[0].EventID)
		assert.Equal(t, "Exam Fee", reg.Events[0].Title)
		assert.Equal(t, "upi", reg.PaymentMethod)
	})

	t.Run("empty basket", func(t *testing.T) {
		rr := doJSON(t, r, http.MethodPost, "/api/registrations/", studentToken, map[string]any{
			"events": []any{},
		})
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("malformed reference", func(t *testing.T) {
		rr := doJSON(t, r, http.MethodPost, "/api/registrations/", studentToken, map[string]any{
			"events": []any{12345},
		})
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("unknown event", func(t *testing.T) {
		rr := doJSON(t, r, http.MethodPost, "/api/registrations/", studentToken, map[string]any{
			"events": []any{"no-such-event"},
		})
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("students see only their own bookings", func(t *testing.T) {
		rr := doJSON(t, r, http.MethodPost, "/api/registrations/", otherToken, map[string]any{
			"events": []any{techFestID},
		})
		require.Equal(t, http.StatusOK, rr.Code)

		rr = doJSON(t, r, http.MethodGet, "/api/registrations/", studentToken, nil)
		require.Equal(t, http.StatusOK, rr.Code)

		var regs []model.Registration
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &regs))
		require.Len(t, regs, 1)
		assert.Equal(t, student.ID, regs[0].UserID)
	})

	t.Run("admin sees every booking", func(t *testing.T) {
		rr := doJSON(t, r, http.MethodGet, "/api/admin/registrations", adminToken, nil)
		require.Equal(t, http.StatusOK, rr.Code)

		var regs []model.Registration
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &regs))
		assert.Len(t, regs, 2)
	})

	t.Run("admin listing is gated", func(t *testing.T) {
		rr := doJSON(t, r, http.MethodGet, "/api/admin/registrations", studentToken, nil)
		assert.Equal(t, http.StatusForbidden, rr.Code)
	})
}

func TestProfile(t *testing.T) {
	r, server, fs := newTestServer()
	_, studentToken := seedUser(t, server, fs, "1AB21CS001", model.RoleStudent)

	t.Run("update and read back", func(t *testing.T) {
		rr := doJSON(t, r, http.MethodPut, "/api/user/profile", studentToken, map[string]string{
			"phone":      "9876543210",
			"department": "CSE",
			"dob":        "01012003",
		})
		require.Equal(t, http.StatusOK, rr.Code)

		rr = doJSON(t, r, http.MethodGet, "/api/user/profile", studentToken, nil)
		require.Equal(t, http.StatusOK, rr.Code)

		var resp struct {
			User model.User `json:"user"`
		}
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Equal(t, "9876543210", resp.User.Phone)
		assert.Equal(t, "CSE", resp.User.Department)
	})

	t.Run("dob format is checked", func(t *testing.T) {
		rr := doJSON(t, r, http.MethodPut, "/api/user/profile", studentToken, map[string]string{
			"dob": "2003-01-01",
		})
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestChangePassword(t *testing.T) {
	r, server, fs := newTestServer()
	_, studentToken := seedUser(t, server, fs, "1AB21CS001", model.RoleStudent)

	t.Run("wrong current password", func(t *testing.T) {
		rr := doJSON(t, r, http.MethodPut, "/api/user/change-password", studentToken, map[string]string{
			"currentPassword": "09099999",
			"newPassword":     "02022003",
		})
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("new password must be a date of birth", func(t *testing.T) {
		rr := doJSON(t, r, http.MethodPut, "/api/user/change-password", studentToken, map[string]string{
			"currentPassword": "01012003",
			"newPassword":     "hunter22",
		})
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("successful change", func(t *testing.T) {
		rr := doJSON(t, r, http.MethodPut, "/api/user/change-password", studentToken, map[string]string{
			"currentPassword": "01012003",
			"newPassword":     "02022003",
		})
		require.Equal(t, http.StatusOK, rr.Code)

		rr = doJSON(t, r, http.MethodPost, "/api/auth/login", "", map[string]string{
			"usn":      "1AB21CS001",
			"password": "02022003",
		})
		assert.Equal(t, http.StatusOK, rr.Code)
	})
}
