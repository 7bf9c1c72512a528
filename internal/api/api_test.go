package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mwinters/loreboard/internal/schema"
	"github.com/mwinters/loreboard/internal/session"
)

type testServer struct {
	*httptest.Server
	api *Server
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	manager := session.NewManager(&session.Config{
		WatchFiles: false,
		Logger:     log.New(io.Discard, "", 0),
	})
	srv := NewServer(manager, log.New(io.Discard, "", 0))
	srv.Start()
	ts := httptest.NewServer(srv.Handler(nil))
	t.Cleanup(func() {
		ts.Close()
		srv.Stop()
		manager.Close()
	})
	return &testServer{Server: ts, api: srv}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request: %v", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequest(method, ts.URL+path, reader)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request %s %s failed: %v", method, path, err)
	}
	return resp
}

// expect performs a request, asserts the status, and decodes the body into
// out when out is non-nil.
func (ts *testServer) expect(t *testing.T, method, path string, body any, status int, out any) {
	t.Helper()

	resp := ts.do(t, method, path, body)
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != status {
		t.Fatalf("%s %s = %d, want %d (body: %s)", method, path, resp.StatusCode, status, raw)
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			t.Fatalf("failed to decode response from %s %s: %v", method, path, err)
		}
	}
}

func (ts *testServer) createCampaign(t *testing.T) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "api.campaign")
	ts.expect(t, "POST", "/api/campaign/create", map[string]string{"path": path}, http.StatusOK, nil)
}

func (ts *testServer) createTemplate(t *testing.T) *schema.CardTemplate {
	t.Helper()
	var tpl schema.CardTemplate
	ts.expect(t, "POST", "/api/templates", map[string]any{
		"name": "NPC",
		"icon": "person",
		"field_definitions": []map[string]any{
			{"key": "bio", "label": "Biography", "type": "longtext"},
			{"key": "age", "label": "Age", "type": "number"},
		},
	}, http.StatusCreated, &tpl)
	return &tpl
}

func (ts *testServer) createList(t *testing.T, name string) *schema.List {
	t.Helper()
	var list schema.List
	ts.expect(t, "POST", "/api/lists", map[string]any{"name": name}, http.StatusCreated, &list)
	return &list
}

func (ts *testServer) createCard(t *testing.T, listID, templateID, name string, folder bool) *schema.PopulatedCard {
	t.Helper()
	var card schema.PopulatedCard
	ts.expect(t, "POST", "/api/cards", map[string]any{
		"list_id":     listID,
		"template_id": templateID,
		"name":        name,
		"is_folder":   folder,
	}, http.StatusCreated, &card)
	return &card
}

func TestAPI_NoActiveCampaign(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, "GET", "/api/lists", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusPreconditionFailed {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusPreconditionFailed)
	}

	var body errorBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	if body.Kind != "no_active_campaign" {
		t.Errorf("kind = %q, want %q", body.Kind, "no_active_campaign")
	}
}

func TestAPI_CampaignLifecycle(t *testing.T) {
	ts := newTestServer(t)
	ts.createCampaign(t)

	var got campaignResponse
	ts.expect(t, "GET", "/api/campaign", nil, http.StatusOK, &got)
	if got.Path == "" {
		t.Error("expected campaign path in response")
	}

	var meta schema.CampaignMeta
	ts.expect(t, "PATCH", "/api/campaign", map[string]string{"name": "Dragon Heist"}, http.StatusOK, &meta)
	if meta.Name != "Dragon Heist" {
		t.Errorf("name = %q, want %q", meta.Name, "Dragon Heist")
	}

	ts.expect(t, "POST", "/api/campaign/close", nil, http.StatusNoContent, nil)
	resp := ts.do(t, "GET", "/api/campaign", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusPreconditionFailed {
		t.Fatalf("status after close = %d, want %d", resp.StatusCode, http.StatusPreconditionFailed)
	}
}

func TestAPI_CardCRUD(t *testing.T) {
	ts := newTestServer(t)
	ts.createCampaign(t)
	tpl := ts.createTemplate(t)
	list := ts.createList(t, "Act One")

	card := ts.createCard(t, list.ID, tpl.ID, "Volo", false)
	if card.Template.Name != "NPC" {
		t.Fatal("expected populated template on created card")
	}

	var updated schema.PopulatedCard
	ts.expect(t, "PATCH", "/api/cards/"+card.ID, map[string]any{
		"field_values": map[string]any{"age": 52},
	}, http.StatusOK, &updated)
	if v, ok := updated.FieldValues["age"]; !ok {
		t.Error("expected age field value after update")
	} else if n, _ := v.Number(); n != 52 {
		t.Errorf("age = %v, want 52", n)
	}

	var cards []*schema.PopulatedCard
	ts.expect(t, "GET", "/api/cards?list_id="+list.ID, nil, http.StatusOK, &cards)
	if len(cards) != 1 {
		t.Fatalf("expected 1 card in list, got %d", len(cards))
	}

	ts.expect(t, "DELETE", "/api/cards/"+card.ID, nil, http.StatusNoContent, nil)
	resp := ts.do(t, "GET", "/api/cards/"+card.ID, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status after delete = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
}

func TestAPI_ErrorStatusMapping(t *testing.T) {
	ts := newTestServer(t)
	ts.createCampaign(t)
	tpl := ts.createTemplate(t)
	list := ts.createList(t, "Act One")
	card := ts.createCard(t, list.ID, tpl.ID, "Volo", false)

	// In-use template delete is a conflict.
	resp := ts.do(t, "DELETE", "/api/templates/"+tpl.ID, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("in-use template delete = %d, want %d", resp.StatusCode, http.StatusConflict)
	}

	// Nesting under a plain card is a validation failure.
	resp = ts.do(t, "POST", "/api/cards", map[string]any{
		"list_id": list.ID, "template_id": tpl.ID, "name": "Nested",
		"parent_folder_id": card.ID,
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("nest under non-folder = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}

	// Moving a folder into its own subtree is unprocessable.
	folder := ts.createCard(t, list.ID, tpl.ID, "Chapter", true)
	inner := ts.createCard(t, list.ID, tpl.ID, "Scenes", true)
	ts.expect(t, "POST", "/api/cards/"+inner.ID+"/move", map[string]any{
		"list_id": list.ID, "parent_folder_id": folder.ID, "index": 0,
	}, http.StatusNoContent, nil)
	resp = ts.do(t, "POST", "/api/cards/"+folder.ID+"/move", map[string]any{
		"list_id": list.ID, "parent_folder_id": inner.ID, "index": 0,
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("cycle move = %d, want %d", resp.StatusCode, http.StatusUnprocessableEntity)
	}

	// Unknown ids are not found.
	resp = ts.do(t, "GET", "/api/cards/nope", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown card = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}

	// Malformed JSON is a bad request.
	req, _ := http.NewRequest("POST", ts.URL+"/api/lists", strings.NewReader("{nope"))
	req.Header.Set("Content-Type", "application/json")
	badResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	badResp.Body.Close()
	if badResp.StatusCode != http.StatusBadRequest {
		t.Errorf("malformed body = %d, want %d", badResp.StatusCode, http.StatusBadRequest)
	}
}

func TestAPI_ExpandToggle(t *testing.T) {
	ts := newTestServer(t)
	ts.createCampaign(t)
	tpl := ts.createTemplate(t)
	list := ts.createList(t, "Act One")
	folder := ts.createCard(t, list.ID, tpl.ID, "Chapter", true)

	// No body toggles; folders start expanded.
	ts.expect(t, "POST", "/api/cards/"+folder.ID+"/expand", nil, http.StatusNoContent, nil)
	var got schema.PopulatedCard
	ts.expect(t, "GET", "/api/cards/"+folder.ID, nil, http.StatusOK, &got)
	if got.IsExpanded {
		t.Error("expected folder collapsed after toggle")
	}

	ts.expect(t, "POST", "/api/cards/"+folder.ID+"/expand", map[string]bool{"expanded": true}, http.StatusNoContent, nil)
	ts.expect(t, "GET", "/api/cards/"+folder.ID, nil, http.StatusOK, &got)
	if !got.IsExpanded {
		t.Error("expected folder expanded after explicit set")
	}
}

func TestAPI_Links(t *testing.T) {
	ts := newTestServer(t)
	ts.createCampaign(t)
	tpl := ts.createTemplate(t)
	list := ts.createList(t, "Act One")
	a := ts.createCard(t, list.ID, tpl.ID, "Volo", false)
	b := ts.createCard(t, list.ID, tpl.ID, "Renaer", false)

	var link schema.CardLink
	ts.expect(t, "POST", "/api/links", map[string]string{
		"source_card_id": a.ID, "target_card_id": b.ID, "field_key": "allies",
	}, http.StatusCreated, &link)

	var linked []*schema.PopulatedCard
	ts.expect(t, "GET", fmt.Sprintf("/api/links/cards?card_id=%s&field_key=allies", a.ID), nil, http.StatusOK, &linked)
	if len(linked) != 1 || linked[0].Name != "Renaer" {
		t.Fatalf("expected one linked card Renaer, got %+v", linked)
	}

	var backs []*schema.Backlink
	ts.expect(t, "GET", "/api/cards/"+b.ID+"/backlinks", nil, http.StatusOK, &backs)
	if len(backs) != 1 || backs[0].SourceCardName != "Volo" {
		t.Fatalf("expected one backlink from Volo, got %+v", backs)
	}

	// Duplicate edge conflicts.
	resp := ts.do(t, "POST", "/api/links", map[string]string{
		"source_card_id": a.ID, "target_card_id": b.ID, "field_key": "allies",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("duplicate link = %d, want %d", resp.StatusCode, http.StatusConflict)
	}

	ts.expect(t, "DELETE", "/api/links/"+link.ID, nil, http.StatusNoContent, nil)
	ts.expect(t, "GET", fmt.Sprintf("/api/links?card_id=%s&field_key=allies", a.ID), nil, http.StatusOK, &[]schema.CardLink{})
}

func TestAPI_ImageRoundTrip(t *testing.T) {
	ts := newTestServer(t)
	ts.createCampaign(t)

	payload := []byte{0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a}
	req, err := http.NewRequest("POST", ts.URL+"/api/images", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	req.Header.Set("Content-Type", "image/png")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("upload failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("upload status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}
	var saved saveImageResponse
	if err := json.NewDecoder(resp.Body).Decode(&saved); err != nil {
		t.Fatalf("failed to decode upload response: %v", err)
	}

	got := ts.do(t, "GET", "/api/images/"+saved.ID, nil)
	defer got.Body.Close()
	if ct := got.Header.Get("Content-Type"); ct != "image/png" {
		t.Errorf("content type = %q, want %q", ct, "image/png")
	}
	data, _ := io.ReadAll(got.Body)
	if !bytes.Equal(data, payload) {
		t.Error("image bytes did not round trip")
	}
}

func TestAPI_WebSocketNotification(t *testing.T) {
	ts := newTestServer(t)
	ts.createCampaign(t)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("failed to dial websocket: %v", err)
	}
	defer conn.Close()

	// Give the hub a beat to register the client before mutating.
	time.Sleep(50 * time.Millisecond)
	ts.createList(t, "Act One")

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var event Event
	if err := conn.ReadJSON(&event); err != nil {
		t.Fatalf("failed to read event: %v", err)
	}
	if event.Type != EventCampaignChanged {
		t.Errorf("event type = %q, want %q", event.Type, EventCampaignChanged)
	}
}
