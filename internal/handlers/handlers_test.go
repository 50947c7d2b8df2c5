package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/servicedesk-pro/servicedesk/internal/auth"
	"github.com/servicedesk-pro/servicedesk/internal/images"
	"github.com/servicedesk-pro/servicedesk/internal/store"
	"github.com/servicedesk-pro/servicedesk/internal/ticket"
	"github.com/servicedesk-pro/servicedesk/pkg/models"
)

type testEnv struct {
	store  *store.Memory
	auth   *auth.Service
	router chi.Router
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	mem := store.NewMemory()
	ticketService := ticket.New(mem)
	authService := auth.New("test-signing-key", "servicedesk-test", time.Hour, nil, mem)
	imageService := images.New(images.NewMemoryBucket())

	h := New(mem, ticketService, authService, imageService)
	return &testEnv{store: mem, auth: authService, router: h.Routes()}
}

func (e *testEnv) seedUser(t *testing.T, uid string, role models.Role) {
	t.Helper()
	err := e.store.CreateUser(context.Background(), &models.User{
		UID: uid, FullName: "User " + uid, Role: role, Active: true,
	})
	if err != nil {
		t.Fatalf("seed user %s: %v", uid, err)
	}
}

// tokenFor signs a service JWT for an already-seeded user.
func (e *testEnv) tokenFor(t *testing.T, uid string, role models.Role) string {
	t.Helper()
	token, err := e.auth.GenerateToken(&models.User{UID: uid, Role: role})
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func (e *testEnv) do(t *testing.T, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, into interface{}) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), into); err != nil {
		t.Fatalf("unmarshal response %q: %v", w.Body.String(), err)
	}
}

func (e *testEnv) createTicket(t *testing.T, body string) string {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/tickets", body, "")
	if w.Code != http.StatusOK {
		t.Fatalf("create ticket: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		ID string `json:"id"`
	}
	decode(t, w, &resp)
	if resp.ID == "" {
		t.Fatal("expected ticket id in response")
	}
	return resp.ID
}

func TestHealth(t *testing.T) {
	e := newTestEnv(t)
	w := e.do(t, http.MethodGet, "/health", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestCreateTicketMinimalBody(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(t, http.MethodPost, "/api/tickets", `{"description":"laptop wont boot"}`, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		ID           string `json:"id"`
		Message      string `json:"message"`
		TicketNumber string `json:"ticketNumber"`
		TechnicianID string `json:"technicianId"`
	}
	decode(t, w, &resp)
	if resp.ID == "" || resp.Message != "Ticket created" {
		t.Errorf("unexpected response %+v", resp)
	}
	wantPrefix := fmt.Sprintf("TKT-%d-", time.Now().UTC().Year())
	if !strings.HasPrefix(resp.TicketNumber, wantPrefix) {
		t.Errorf("expected ticket number with prefix %s, got %s", wantPrefix, resp.TicketNumber)
	}
	// No technicians exist, so creation still succeeds unassigned.
	if resp.TechnicianID != "" {
		t.Errorf("expected no technician, got %s", resp.TechnicianID)
	}

	// The unknown client id falls back in place.
	var got models.Ticket
	decode(t, e.do(t, http.MethodGet, "/api/tickets/"+resp.ID, "", ""), &got)
	if got.ClientID != "unknown" {
		t.Errorf("expected clientId unknown, got %s", got.ClientID)
	}
}

func TestCreateTicketValidation(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(t, http.MethodPost, "/api/tickets", `{"clientId":"c-1"}`, "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without description, got %d", w.Code)
	}

	w = e.do(t, http.MethodPost, "/api/tickets", `{not json`, "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad json, got %d", w.Code)
	}
}

func TestCreateTicketAutoAssigns(t *testing.T) {
	e := newTestEnv(t)
	e.seedUser(t, "tech-a", models.RoleTechnician)

	w := e.do(t, http.MethodPost, "/api/tickets", `{"clientId":"c-1","description":"slow fan"}`, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		TechnicianID string `json:"technicianId"`
	}
	decode(t, w, &resp)
	if resp.TechnicianID != "tech-a" {
		t.Errorf("expected tech-a assigned, got %q", resp.TechnicianID)
	}
}

func TestTicketLifecycleOverHTTP(t *testing.T) {
	e := newTestEnv(t)
	id := e.createTicket(t, `{"clientId":"c-1","description":"coffee in keyboard"}`)

	// Walk the full lifecycle.
	for _, status := range []string{"Received", "Diagnosed", "Waiting for Parts", "Repairing", "Ready", "Closed"} {
		body := fmt.Sprintf(`{"status":%q,"changedBy":"worker-1"}`, status)
		w := e.do(t, http.MethodPost, "/api/tickets/"+id+"/status", body, "")
		if w.Code != http.StatusOK {
			t.Fatalf("transition to %s: expected 200, got %d: %s", status, w.Code, w.Body.String())
		}
	}

	var got models.Ticket
	decode(t, e.do(t, http.MethodGet, "/api/tickets/"+id, "", ""), &got)
	if got.Status != models.StatusClosed {
		t.Errorf("expected Closed, got %s", got.Status)
	}
	if len(got.StatusHistory) != 7 {
		t.Errorf("expected 7 history entries, got %d", len(got.StatusHistory))
	}

	// Closed is terminal.
	w := e.do(t, http.MethodPost, "/api/tickets/"+id+"/status", `{"status":"Received"}`, "")
	if w.Code != http.StatusConflict {
		t.Errorf("expected 409 for transition out of Closed, got %d", w.Code)
	}
}

func TestInvalidTransitionConflict(t *testing.T) {
	e := newTestEnv(t)
	id := e.createTicket(t, `{"clientId":"c-1","description":"x"}`)

	w := e.do(t, http.MethodPost, "/api/tickets/"+id+"/status", `{"status":"Closed"}`, "")
	if w.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d: %s", w.Code, w.Body.String())
	}
}

func TestGetTicketNotFound(t *testing.T) {
	e := newTestEnv(t)
	w := e.do(t, http.MethodGet, "/api/tickets/missing", "", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestListTicketsShape(t *testing.T) {
	e := newTestEnv(t)
	e.createTicket(t, `{"clientId":"c-1","description":"a"}`)
	e.createTicket(t, `{"clientId":"c-2","description":"b"}`)

	var resp struct {
		Tickets []models.Ticket `json:"tickets"`
	}
	decode(t, e.do(t, http.MethodGet, "/api/tickets", "", ""), &resp)
	if len(resp.Tickets) != 2 {
		t.Fatalf("expected 2 tickets, got %d", len(resp.Tickets))
	}

	decode(t, e.do(t, http.MethodGet, "/api/tickets?clientId=c-1", "", ""), &resp)
	if len(resp.Tickets) != 1 || resp.Tickets[0].ClientID != "c-1" {
		t.Errorf("expected only c-1 tickets, got %+v", resp.Tickets)
	}
}

func TestReassignRequiresManager(t *testing.T) {
	e := newTestEnv(t)
	e.seedUser(t, "tech-a", models.RoleTechnician)
	e.seedUser(t, "tech-b", models.RoleTechnician)
	e.seedUser(t, "manager-1", models.RoleManager)
	id := e.createTicket(t, `{"clientId":"c-1","description":"x"}`)

	body := `{"technicianId":"tech-b"}`

	w := e.do(t, http.MethodPost, "/api/tickets/"+id+"/reassign", body, "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", w.Code)
	}

	clientToken := e.tokenFor(t, "c-1", models.RoleClient)
	w = e.do(t, http.MethodPost, "/api/tickets/"+id+"/reassign", body, clientToken)
	if w.Code != http.StatusForbidden {
		t.Errorf("expected 403 for client, got %d", w.Code)
	}

	managerToken := e.tokenFor(t, "manager-1", models.RoleManager)
	w = e.do(t, http.MethodPost, "/api/tickets/"+id+"/reassign", body, managerToken)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for manager, got %d: %s", w.Code, w.Body.String())
	}

	var got models.Ticket
	decode(t, w, &got)
	if got.TechnicianID != "tech-b" {
		t.Errorf("expected tech-b, got %s", got.TechnicianID)
	}
	if len(got.ReassignmentHistory) != 1 || got.ReassignmentHistory[0].ReassignedBy != "manager-1" {
		t.Errorf("expected reassignment by manager-1, got %+v", got.ReassignmentHistory)
	}
}

func TestBadTokenRejected(t *testing.T) {
	e := newTestEnv(t)
	w := e.do(t, http.MethodGet, "/api/tickets", "", "garbage-token")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for bad token, got %d", w.Code)
	}
}

func TestNotesOverHTTP(t *testing.T) {
	e := newTestEnv(t)
	id := e.createTicket(t, `{"clientId":"c-1","description":"x"}`)

	w := e.do(t, http.MethodPost, "/api/tickets/"+id+"/notes",
		`{"content":"client called","authorId":"worker-1","authorName":"Worker One"}`, "")
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Notes []models.Note `json:"notes"`
	}
	decode(t, e.do(t, http.MethodGet, "/api/tickets/"+id+"/notes", "", ""), &resp)
	if len(resp.Notes) != 1 || resp.Notes[0].Content != "client called" {
		t.Errorf("unexpected notes %+v", resp.Notes)
	}
}

func TestPartsOverHTTP(t *testing.T) {
	e := newTestEnv(t)
	id := e.createTicket(t, `{"clientId":"c-1","description":"x"}`)

	w := e.do(t, http.MethodPost, "/api/tickets/"+id+"/parts",
		`{"type":"ordered","description":"SSD 1TB","unitPrice":300}`, "")
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var part models.Part
	decode(t, w, &part)
	if part.Quantity != 1 || part.Status != models.PartStatusOrdered {
		t.Errorf("expected defaults applied, got %+v", part)
	}

	w = e.do(t, http.MethodPost, "/api/tickets/"+id+"/parts/"+part.ID+"/status", `{"status":"delivered"}`, "")
	if w.Code != http.StatusOK {
		t.Fatalf("update part status: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	w = e.do(t, http.MethodPost, "/api/tickets/"+id+"/parts/missing/status", `{"status":"delivered"}`, "")
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown part, got %d", w.Code)
	}

	w = e.do(t, http.MethodDelete, "/api/tickets/"+id+"/parts/"+part.ID, "", "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete part: expected 204, got %d", w.Code)
	}

	var resp struct {
		TicketParts []models.Part `json:"ticketParts"`
	}
	decode(t, e.do(t, http.MethodGet, "/api/tickets/"+id+"/parts", "", ""), &resp)
	if len(resp.TicketParts) != 0 {
		t.Errorf("expected no parts, got %+v", resp.TicketParts)
	}
}

func TestImageUploadOverHTTP(t *testing.T) {
	e := newTestEnv(t)
	id := e.createTicket(t, `{"clientId":"c-1","description":"x"}`)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreatePart(map[string][]string{
		"Content-Disposition": {`form-data; name="file"; filename="photo.jpg"`},
		"Content-Type":        {"image/jpeg"},
	})
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	part.Write([]byte("jpeg-bytes"))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/tickets/"+id+"/images", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("upload: expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var img models.Image
	decode(t, w, &img)
	if !strings.HasPrefix(img.Path, "tickets/"+id+"/") {
		t.Errorf("expected object under the ticket folder, got %s", img.Path)
	}

	var resp struct {
		Images []models.Image `json:"images"`
	}
	decode(t, e.do(t, http.MethodGet, "/api/tickets/"+id+"/images", "", ""), &resp)
	if len(resp.Images) != 1 {
		t.Fatalf("expected 1 image, got %d", len(resp.Images))
	}

	wDel := e.do(t, http.MethodDelete, "/api/tickets/"+id+"/images/"+img.Filename, "", "")
	if wDel.Code != http.StatusNoContent {
		t.Fatalf("delete image: expected 204, got %d: %s", wDel.Code, wDel.Body.String())
	}
	decode(t, e.do(t, http.MethodGet, "/api/tickets/"+id+"/images", "", ""), &resp)
	if len(resp.Images) != 0 {
		t.Errorf("expected no images after delete, got %d", len(resp.Images))
	}
}

func TestImageUploadRejectsNonImage(t *testing.T) {
	e := newTestEnv(t)
	id := e.createTicket(t, `{"clientId":"c-1","description":"x"}`)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreatePart(map[string][]string{
		"Content-Disposition": {`form-data; name="file"; filename="notes.txt"`},
		"Content-Type":        {"text/plain"},
	})
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	part.Write([]byte("hello"))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/tickets/"+id+"/images", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for non-image upload, got %d: %s", w.Code, w.Body.String())
	}
}

func TestUserManagement(t *testing.T) {
	e := newTestEnv(t)
	e.seedUser(t, "worker-1", models.RoleWorker)
	e.seedUser(t, "manager-1", models.RoleManager)
	workerToken := e.tokenFor(t, "worker-1", models.RoleWorker)
	managerToken := e.tokenFor(t, "manager-1", models.RoleManager)

	// Anonymous creation is rejected.
	w := e.do(t, http.MethodPost, "/api/users", `{"fullName":"Walk In"}`, "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", w.Code)
	}

	// A worker registers a profile-only client: no uid in the request.
	w = e.do(t, http.MethodPost, "/api/users", `{"fullName":"Walk In","phone":"600100200"}`, workerToken)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var created struct {
		UID string `json:"uid"`
	}
	decode(t, w, &created)
	if !strings.HasPrefix(created.UID, "user-") {
		t.Errorf("expected generated uid, got %q", created.UID)
	}

	var profile models.User
	decode(t, e.do(t, http.MethodGet, "/api/users/"+created.UID, "", ""), &profile)
	if profile.HasAccount {
		t.Error("profile-only client must have hasAccount false")
	}
	if profile.Role != models.RoleClient {
		t.Errorf("role should default to client, got %s", profile.Role)
	}
	if profile.CreatedBy != "worker-1" {
		t.Errorf("createdBy should be the worker, got %s", profile.CreatedBy)
	}

	// Linking a Firebase uid marks the account.
	w = e.do(t, http.MethodPost, "/api/users", `{"uid":"fb-1","fullName":"Signed Up","role":"technician"}`, workerToken)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	decode(t, e.do(t, http.MethodGet, "/api/users/fb-1", "", ""), &profile)
	if !profile.HasAccount || profile.Role != models.RoleTechnician {
		t.Errorf("unexpected profile %+v", profile)
	}

	// Updates and deletes are manager-only.
	w = e.do(t, http.MethodPatch, "/api/users/fb-1", `{"active":false}`, workerToken)
	if w.Code != http.StatusForbidden {
		t.Errorf("expected 403 for worker patch, got %d", w.Code)
	}
	w = e.do(t, http.MethodPatch, "/api/users/fb-1", `{"active":false}`, managerToken)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	decode(t, w, &profile)
	if profile.Active {
		t.Error("expected deactivated user")
	}

	w = e.do(t, http.MethodDelete, "/api/users/fb-1", "", managerToken)
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	w = e.do(t, http.MethodGet, "/api/users/fb-1", "", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 after delete, got %d", w.Code)
	}
}

func TestDeviceFindOrCreateAndHistory(t *testing.T) {
	e := newTestEnv(t)

	body := `{"serialNumber":"SN-1","ownerId":"c-1","device":{"brand":"Lenovo","model":"T480"}}`
	var created struct {
		ID string `json:"id"`
	}
	w := e.do(t, http.MethodPost, "/api/devices/find-or-create", body, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	decode(t, w, &created)

	// Same serial resolves to the same device.
	var again struct {
		ID string `json:"id"`
	}
	decode(t, e.do(t, http.MethodPost, "/api/devices/find-or-create", body, ""), &again)
	if again.ID != created.ID {
		t.Errorf("expected existing device %s, got %s", created.ID, again.ID)
	}

	ticketBody := fmt.Sprintf(`{"clientId":"c-1","description":"hinge broken","deviceId":%q}`, created.ID)
	ticketID := e.createTicket(t, ticketBody)

	var history struct {
		Tickets []models.Ticket `json:"tickets"`
	}
	decode(t, e.do(t, http.MethodGet, "/api/devices/"+created.ID+"/history", "", ""), &history)
	if len(history.Tickets) != 1 || history.Tickets[0].ID != ticketID {
		t.Errorf("expected the new ticket in history, got %+v", history.Tickets)
	}

	// Snapshot travels on the ticket.
	var got models.Ticket
	decode(t, e.do(t, http.MethodGet, "/api/tickets/"+ticketID, "", ""), &got)
	if got.Device.Brand != "Lenovo" {
		t.Errorf("expected device snapshot on ticket, got %+v", got.Device)
	}
}

func TestReportStatsOverHTTP(t *testing.T) {
	e := newTestEnv(t)
	e.seedUser(t, "tech-a", models.RoleTechnician)
	id := e.createTicket(t, `{"clientId":"c-1","description":"x"}`)

	for _, status := range []string{"Received", "Diagnosed", "Repairing", "Ready", "Closed"} {
		body := fmt.Sprintf(`{"status":%q}`, status)
		if w := e.do(t, http.MethodPost, "/api/tickets/"+id+"/status", body, ""); w.Code != http.StatusOK {
			t.Fatalf("transition to %s: %d: %s", status, w.Code, w.Body.String())
		}
	}
	e.createTicket(t, `{"clientId":"c-2","description":"y"}`)

	var resp struct {
		Stats struct {
			Total  int `json:"total"`
			Open   int `json:"open"`
			Closed int `json:"closed"`
		} `json:"stats"`
		AverageRepairTimeDays float64 `json:"averageRepairTimeDays"`
		TechnicianPerformance []struct {
			TechnicianID string  `json:"technicianId"`
			Total        int     `json:"total"`
			Closed       int     `json:"closed"`
			ClosureRate  float64 `json:"closureRate"`
		} `json:"technicianPerformance"`
	}
	w := e.do(t, http.MethodGet, "/api/reports/stats", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	decode(t, w, &resp)

	if resp.Stats.Total != 2 || resp.Stats.Closed != 1 || resp.Stats.Open != 1 {
		t.Errorf("unexpected stats %+v", resp.Stats)
	}
	if len(resp.TechnicianPerformance) != 1 {
		t.Fatalf("expected one technician row, got %d", len(resp.TechnicianPerformance))
	}
	perf := resp.TechnicianPerformance[0]
	if perf.TechnicianID != "tech-a" || perf.Total != 2 || perf.Closed != 1 || perf.ClosureRate != 50 {
		t.Errorf("unexpected performance %+v", perf)
	}
}

func TestTicketReportSnapshot(t *testing.T) {
	e := newTestEnv(t)
	err := e.store.CreateUser(context.Background(), &models.User{
		UID: "c-1", FullName: "Grażyna Żółkiewska", Role: models.RoleClient, Active: true,
	})
	if err != nil {
		t.Fatalf("seed client: %v", err)
	}
	id := e.createTicket(t, `{"clientId":"c-1","description":"Pęknięta matryca"}`)

	var snap struct {
		Description string `json:"description"`
		Client      struct {
			FullName string `json:"fullName"`
		} `json:"client"`
	}
	w := e.do(t, http.MethodGet, "/api/tickets/"+id+"/report", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	decode(t, w, &snap)
	if snap.Description != "Peknieta matryca" {
		t.Errorf("expected folded description, got %q", snap.Description)
	}
	if snap.Client.FullName != "Grazyna Zolkiewska" {
		t.Errorf("expected folded client name, got %q", snap.Client.FullName)
	}
}
