package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/thereceipt/escpos-engine/internal/config"
	"github.com/thereceipt/escpos-engine/internal/printer"
	"github.com/thereceipt/escpos-engine/internal/registry"
	"github.com/thereceipt/escpos-engine/pkg/escpos"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type recordingConn struct {
	mu      sync.Mutex
	written bytes.Buffer
}

func (c *recordingConn) Write(ctx context.Context, data []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.written.Write(data)
}

func (c *recordingConn) Close() error { return nil }

func (c *recordingConn) Bytes() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]byte(nil), c.written.Bytes()...)
}

type testEnv struct {
	server  *Server
	service *printer.Service
	conn    *recordingConn
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	reg, err := registry.New(filepath.Join(t.TempDir(), "registry.json"), zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}

	conn := &recordingConn{}
	dial := func(ctx context.Context, p *printer.Printer, opts printer.ConnectOptions) (printer.Connection, error) {
		return conn, nil
	}

	cfg := config.Default()
	cfg.Printer.MaxRetries = 0
	cfg.Printer.RetryDelay = time.Millisecond

	service := printer.NewService(cfg.Printer, reg, dial, zap.NewNop())
	service.Manager().SetDetector(printer.TypeUSB, nil)
	service.Manager().SetDetector(printer.TypeSerial, nil)

	server := NewServer(service, cfg, zap.NewNop())
	t.Cleanup(func() {
		server.Shutdown(context.Background())
		service.Close()
	})

	return &testEnv{server: server, service: service, conn: conn}
}

// selectPrinter adds a network printer and makes it current
func (e *testEnv) selectPrinter(t *testing.T) string {
	t.Helper()
	id := e.service.Manager().AddNetworkPrinter("10.0.0.1", 9100, "")
	if err := e.service.Select(context.Background(), id); err != nil {
		t.Fatal(err)
	}
	return id
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("Expected JSON body, got %q: %v", w.Body.String(), err)
	}
	return body
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", w.Code)
	}
	if decode(t, w)["status"] != "ok" {
		t.Errorf("Expected status ok, got %s", w.Body.String())
	}
}

func TestPrinterEndpoints(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/printer/network", map[string]interface{}{"host": "192.168.1.20"})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	id := decode(t, w)["printer_id"].(string)

	if w := env.do(t, http.MethodPost, "/printer/network", map[string]interface{}{"port": 9100}); w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 without host, got %d", w.Code)
	}

	if w := env.do(t, http.MethodPost, "/printer/"+id+"/name", map[string]string{"name": "Bar"}); w.Code != http.StatusOK {
		t.Errorf("Expected rename 200, got %d", w.Code)
	}
	if w := env.do(t, http.MethodPost, "/printer/missing/name", map[string]string{"name": "x"}); w.Code != http.StatusNotFound {
		t.Errorf("Expected rename 404, got %d", w.Code)
	}

	w = env.do(t, http.MethodGet, "/printer/current", nil)
	if decode(t, w)["printer"] != nil {
		t.Errorf("Expected no current printer, got %s", w.Body.String())
	}

	w = env.do(t, http.MethodPost, "/printer/"+id+"/connect", map[string]bool{"select": true})
	if w.Code != http.StatusOK || decode(t, w)["current"] != true {
		t.Fatalf("Expected connect to select printer, got %d: %s", w.Code, w.Body.String())
	}
	if w := env.do(t, http.MethodPost, "/printer/missing/connect", nil); w.Code != http.StatusNotFound {
		t.Errorf("Expected connect 404, got %d", w.Code)
	}

	w = env.do(t, http.MethodGet, "/printers", nil)
	printers := decode(t, w)["printers"].([]interface{})
	if len(printers) != 1 {
		t.Fatalf("Expected 1 printer, got %d", len(printers))
	}
	p := printers[0].(map[string]interface{})
	if p["name"] != "Bar" || p["connected"] != true || p["port"] != float64(9100) {
		t.Errorf("Unexpected printer %+v", p)
	}

	w = env.do(t, http.MethodGet, "/printer/"+id+"/status", nil)
	if decode(t, w)["status"] != string(escpos.StatusConnected) {
		t.Errorf("Expected connected status, got %s", w.Body.String())
	}
	if w := env.do(t, http.MethodGet, "/printer/missing/status", nil); w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}

	if w := env.do(t, http.MethodPost, "/printer/"+id+"/disconnect", nil); w.Code != http.StatusOK {
		t.Errorf("Expected disconnect 200, got %d", w.Code)
	}
	if env.service.IsConnected(id) {
		t.Error("Expected printer to be disconnected")
	}

	if w := env.do(t, http.MethodDelete, "/printer/"+id, nil); w.Code != http.StatusOK {
		t.Errorf("Expected delete 200, got %d", w.Code)
	}
	if w := env.do(t, http.MethodDelete, "/printer/"+id, nil); w.Code != http.StatusNotFound {
		t.Errorf("Expected second delete 404, got %d", w.Code)
	}
}

const templateReceipt = `{
	"version": "1.0",
	"variables": [{"let": "total", "valueType": "double", "prefix": "$"}],
	"commands": [
		{"type": "text", "value": "Corner Cafe", "align": "center", "size": 2},
		{"type": "text", "dynamicValue": "total"}
	]
}`

func TestPrint_Template(t *testing.T) {
	env := newTestEnv(t)
	env.selectPrinter(t)

	w := env.do(t, http.MethodPost, "/print", map[string]interface{}{
		"receipt":      json.RawMessage(templateReceipt),
		"variableData": map[string]interface{}{"total": 12.5},
		"wait":         true,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	body := decode(t, w)
	if body["success"] != true {
		t.Fatalf("Expected success, got %s", w.Body.String())
	}

	out := env.conn.Bytes()
	if !bytes.Contains(out, []byte("Corner Cafe")) || !bytes.Contains(out, []byte("$12.5")) {
		t.Errorf("Expected rendered text in output, got %q", out)
	}
	if int(body["size"].(float64)) != len(out) {
		t.Errorf("Expected size %d, got %v", len(out), body["size"])
	}
}

func TestPrint_Errors(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name   string
		body   interface{}
		status int
	}{
		{"no receipt", map[string]interface{}{}, http.StatusBadRequest},
		{"invalid receipt", map[string]interface{}{"receipt": json.RawMessage(`{"version":"2.0","commands":[]}`)}, http.StatusBadRequest},
		{"missing file", map[string]interface{}{"receipt_path": "/nonexistent.receipt"}, http.StatusBadRequest},
		{"no printer selected", map[string]interface{}{"receipt": json.RawMessage(templateReceipt)}, http.StatusConflict},
		{"unknown printer", map[string]interface{}{"printer_id": "missing", "receipt": json.RawMessage(templateReceipt)}, http.StatusNotFound},
		{"malformed body", "{", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, "/print", tt.body)
			if w.Code != tt.status {
				t.Errorf("Expected %d, got %d: %s", tt.status, w.Code, w.Body.String())
			}
			if _, ok := decode(t, w)["error"]; !ok {
				t.Error("Expected error field")
			}
		})
	}
}

func TestPrint_Items(t *testing.T) {
	env := newTestEnv(t)
	env.selectPrinter(t)

	w := env.do(t, http.MethodPost, "/print/items", `{
		"items": [
			{"type": "text", "data": "TOTAL", "options": {"alignment": "center", "bold": true}},
			{"type": "command", "data": [27, 112, 0, 25, 250]}
		],
		"cutPaper": false,
		"feedLines": 0,
		"wait": true
	}`)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	expected, _ := escpos.Compose(escpos.ReceiptSpec{Items: []escpos.Item{
		escpos.TextItem{Text: "TOTAL", Options: escpos.TextOptions{Align: escpos.AlignCenter, Bold: true}},
		escpos.RawItem{Data: escpos.CashDrawerPulse()},
	}})
	if !bytes.Equal(env.conn.Bytes(), expected) {
		t.Errorf("Expected % X, got % X", expected, env.conn.Bytes())
	}

	if w := env.do(t, http.MethodPost, "/print/items", `{"items": []}`); w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for empty items, got %d", w.Code)
	}
}

func pngBase64(t *testing.T) string {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 16, 4))
	for x := 0; x < 16; x++ {
		img.SetGray(x, 0, color.Gray{Y: 0})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func TestPrint_Elements(t *testing.T) {
	tests := []struct {
		path   string
		body   interface{}
		prefix []byte
	}{
		{"/print/text", map[string]interface{}{"text": "hello", "options": map[string]interface{}{"fontSize": 2}},
			escpos.EncodeText("hello", escpos.TextOptions{FontSize: 2})},
		{"/print/image", map[string]interface{}{"image": "PNG"}, []byte{escpos.ESC, '@', escpos.ESC, 'a'}},
		{"/print/barcode", map[string]interface{}{"content": "12345678", "type": "code39"}, []byte{escpos.ESC, '@', escpos.ESC, 'a'}},
		{"/print/qrcode", map[string]interface{}{"data": "https://example.com"}, []byte{escpos.ESC, '@', escpos.ESC, 'a'}},
		{"/cut", map[string]interface{}{"mode": "partial"}, escpos.CutCommand(escpos.CutPartial)},
		{"/feed", map[string]interface{}{"lines": 4}, escpos.FeedCommand(4)},
		{"/feed", nil, escpos.FeedCommand(1)},
		{"/drawer", nil, escpos.CashDrawerPulse()},
		{"/raw", map[string]interface{}{"hex": "1b40"}, []byte{escpos.ESC, '@'}},
		{"/raw", map[string]interface{}{"base64": base64.StdEncoding.EncodeToString([]byte{0x0A})}, []byte{escpos.LF}},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			env := newTestEnv(t)
			env.selectPrinter(t)

			body := tt.body
			if m, ok := body.(map[string]interface{}); ok {
				if m["image"] == "PNG" {
					m["image"] = pngBase64(t)
				}
				m["wait"] = true
			} else if body == nil {
				body = map[string]bool{"wait": true}
			}

			w := env.do(t, http.MethodPost, tt.path, body)
			if w.Code != http.StatusOK {
				t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
			}
			if !bytes.HasPrefix(env.conn.Bytes(), tt.prefix) {
				t.Errorf("Expected output to start with % X, got % X", tt.prefix, env.conn.Bytes())
			}
		})
	}
}

func TestPrint_ElementErrors(t *testing.T) {
	env := newTestEnv(t)
	env.selectPrinter(t)

	tests := []struct {
		path   string
		body   interface{}
		status int
	}{
		{"/print/text", map[string]string{}, http.StatusBadRequest},
		{"/print/image", map[string]string{"image": "not an image"}, http.StatusUnprocessableEntity},
		{"/print/barcode", map[string]string{"type": "ean13"}, http.StatusBadRequest},
		{"/feed", map[string]int{"lines": 300}, http.StatusBadRequest},
		{"/raw", map[string]string{}, http.StatusBadRequest},
		{"/raw", map[string]string{"hex": "zz"}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		if w := env.do(t, http.MethodPost, tt.path, tt.body); w.Code != tt.status {
			t.Errorf("%s %v: expected %d, got %d: %s", tt.path, tt.body, tt.status, w.Code, w.Body.String())
		}
	}
}

func TestEncode(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/encode", map[string]interface{}{
		"receipt":     json.RawMessage(`{"items":[{"type":"text","data":"hi"}],"cutPaper":false,"feedLines":0}`),
		"paper_width": "58mm",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	expected := escpos.EncodeText("hi", escpos.TextOptions{})
	body := decode(t, w)
	if body["hex"] != hex.EncodeToString(expected) {
		t.Errorf("Expected hex %x, got %v", expected, body["hex"])
	}
	if body["base64"] != base64.StdEncoding.EncodeToString(expected) {
		t.Errorf("Expected base64 of % X, got %v", expected, body["base64"])
	}
	if body["paper_width"] != "58mm" {
		t.Errorf("Expected paper width 58mm, got %v", body["paper_width"])
	}
	if len(env.service.Queue().GetAllJobs()) != 0 {
		t.Error("Expected encode not to queue a job")
	}
}

func TestPreview(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/preview", map[string]interface{}{
		"receipt": json.RawMessage(templateReceipt),
	})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("Expected image/png, got %s", ct)
	}

	img, err := png.Decode(w.Body)
	if err != nil {
		t.Fatalf("Expected valid PNG: %v", err)
	}
	// 80mm default paper
	if img.Bounds().Dx() != 576 {
		t.Errorf("Expected width 576, got %d", img.Bounds().Dx())
	}
}

func TestJobs(t *testing.T) {
	env := newTestEnv(t)
	env.selectPrinter(t)

	w := env.do(t, http.MethodPost, "/drawer", map[string]bool{"wait": true})
	jobID := decode(t, w)["job_id"].(string)

	w = env.do(t, http.MethodGet, "/jobs", nil)
	jobs := decode(t, w)["jobs"].([]interface{})
	if len(jobs) != 1 {
		t.Fatalf("Expected 1 job, got %d", len(jobs))
	}

	w = env.do(t, http.MethodGet, "/job/"+jobID, nil)
	job := decode(t, w)
	if job["status"] != string(printer.JobCompleted) || job["size"] != float64(len(escpos.CashDrawerPulse())) {
		t.Errorf("Unexpected job %+v", job)
	}

	if w := env.do(t, http.MethodGet, "/job/missing", nil); w.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", w.Code)
	}
}

func TestCommand(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/command", map[string]string{"command": "printer add-network 10.1.1.1 9101"})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	body := decode(t, w)
	if body["success"] != true || body["printer_id"] == nil {
		t.Errorf("Expected printer_id in response, got %+v", body)
	}

	if w := env.do(t, http.MethodPost, "/command", map[string]string{"command": "bogus"}); w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", w.Code)
	}
	if w := env.do(t, http.MethodPost, "/command", map[string]string{}); w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 without command, got %d", w.Code)
	}
}

func TestCORS(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodOptions, "/print", nil)
	req.Header.Set("Origin", "http://pos.local")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Expected wildcard origin, got %q", got)
	}
}

func TestCheckOrigin(t *testing.T) {
	check := checkOrigin([]string{"http://pos.local"})

	tests := map[string]bool{
		"":                  true,
		"http://pos.local":  true,
		"http://evil.local": false,
	}
	for origin, expected := range tests {
		req := httptest.NewRequest(http.MethodGet, "/ws", nil)
		if origin != "" {
			req.Header.Set("Origin", origin)
		}
		if got := check(req); got != expected {
			t.Errorf("Origin %q: expected %v, got %v", origin, expected, got)
		}
	}
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{printer.ErrPrinterNotFound, http.StatusNotFound},
		{printer.ErrNoPrinterSelected, http.StatusConflict},
		{printer.ErrQueueFull, http.StatusServiceUnavailable},
		{escpos.ErrInvalidImage, http.StatusBadRequest},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{bytes.ErrTooLarge, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := errorStatus(tt.err); got != tt.status {
			t.Errorf("%v: expected %d, got %d", tt.err, tt.status, got)
		}
	}
}

func dialWS(t *testing.T, env *testEnv) *websocket.Conn {
	t.Helper()
	go env.server.hub.Run()

	srv := httptest.NewServer(env.server.Handler())
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Failed to dial WebSocket: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	// the client is registered before the upgrade handler returns
	deadline := time.Now().Add(2 * time.Second)
	for env.server.hub.ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	return conn
}

// readEvent reads messages until one with the wanted event arrives
func readEvent(t *testing.T, conn *websocket.Conn, event string) map[string]interface{} {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		var msg map[string]interface{}
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("Expected %s message: %v", event, err)
		}
		if msg["event"] == event {
			data, _ := msg["data"].(map[string]interface{})
			return data
		}
	}
}

func TestWebSocket_BroadcastsEvents(t *testing.T) {
	env := newTestEnv(t)
	conn := dialWS(t, env)

	id := env.service.Manager().AddNetworkPrinter("10.0.0.9", 9100, "")

	data := readEvent(t, conn, string(printer.EventPrinterAdded))
	if data["printer_id"] != id {
		t.Errorf("Expected printer_id %s, got %v", id, data["printer_id"])
	}
}

func TestWebSocket_Print(t *testing.T) {
	env := newTestEnv(t)
	env.selectPrinter(t)
	conn := dialWS(t, env)

	err := conn.WriteJSON(map[string]interface{}{
		"event": "print",
		"data": map[string]interface{}{
			"receipt":      json.RawMessage(templateReceipt),
			"variableData": map[string]interface{}{"total": 3},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	data := readEvent(t, conn, EventResponse)
	if data["success"] != true || data["job_id"] == nil {
		t.Errorf("Expected job response, got %+v", data)
	}

	conn.WriteJSON(map[string]interface{}{"event": "print", "data": map[string]interface{}{}})
	errData := readEvent(t, conn, EventError)
	if !strings.Contains(errData["error"].(string), "receipt") {
		t.Errorf("Expected receipt error, got %v", errData["error"])
	}

	conn.WriteJSON(map[string]interface{}{"event": "dance"})
	errData = readEvent(t, conn, EventError)
	if !strings.Contains(errData["error"].(string), "unknown event") {
		t.Errorf("Expected unknown event error, got %v", errData["error"])
	}
}

func TestWebSocket_Command(t *testing.T) {
	env := newTestEnv(t)
	conn := dialWS(t, env)

	conn.WriteJSON(map[string]interface{}{"event": "command", "data": map[string]string{"command": "job list"}})
	data := readEvent(t, conn, EventResponse)
	if data["success"] != true {
		t.Errorf("Expected success, got %+v", data)
	}
}
