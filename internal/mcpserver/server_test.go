package mcpserver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/outliner/internal/docservice"
	"github.com/starford/outliner/internal/session"
	"github.com/starford/outliner/internal/storage"
	"github.com/starford/outliner/internal/testutil"
)

const errandsJSON = `{"title":"Errands","root":{"id":"root","children":[
	{"id":"a","text":"buy milk #shop"},
	{"id":"b","text":"call bob about [[plans]]"}
]}}`

func testServer(t *testing.T) (*Server, storage.Provider) {
	t.Helper()
	_, store := testutil.TestLibrary(t)
	db := testutil.TestDB(t)
	svc := docservice.NewService(store, db)
	t.Cleanup(svc.Close)
	return New(svc), store
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	handlers := map[string]func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error){
		"list_documents":        srv.listDocuments,
		"create_document":       srv.createDocument,
		"read_outline":          srv.readOutline,
		"outline_command":       srv.outlineCommand,
		"undo":                  srv.undo,
		"redo":                  srv.redo,
		"search_nodes":          srv.searchNodes,
		"nodes_by_tag":          srv.nodesByTag,
		"get_backlinks":         srv.getBacklinks,
		"get_document_contract": srv.getContract,
		"import_document":       srv.importDocument,
	}
	h, ok := handlers[name]
	if !ok {
		t.Fatalf("unknown tool: %s", name)
	}
	result, err := h(ctx, req)
	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func dataURI(mime, body string) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString([]byte(body))
}

func importErrands(t *testing.T, srv *Server) {
	t.Helper()
	r := callTool(t, srv, "import_document", map[string]interface{}{
		"url":  dataURI("application/json", errandsJSON),
		"name": "errands",
	})
	if r.IsError {
		t.Fatalf("import: %s", resultText(r))
	}
}

func TestCreateAndReadOutline(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "create_document", map[string]interface{}{
		"name":  "work/plan",
		"title": "Plan",
	})
	if text := resultText(r); text != "created: work/plan" {
		t.Errorf("create result = %q", text)
	}

	r = callTool(t, srv, "read_outline", map[string]interface{}{"name": "work/plan"})
	if text := resultText(r); text != "Plan\n- " {
		t.Errorf("read result = %q", text)
	}
}

func TestReadOutlineFormats(t *testing.T) {
	srv, _ := testServer(t)
	importErrands(t, srv)

	r := callTool(t, srv, "read_outline", map[string]interface{}{"name": "errands", "format": "json"})
	if !strings.Contains(resultText(r), `"id": "a"`) {
		t.Errorf("json = %q", resultText(r))
	}

	r = callTool(t, srv, "read_outline", map[string]interface{}{"name": "errands", "format": "pdf"})
	if !r.IsError {
		t.Error("expected error for unknown format")
	}
}

func TestReadOutlineMissing(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "read_outline", map[string]interface{}{"name": "nope"})
	if !r.IsError {
		t.Error("expected error for missing document")
	}
}

func TestListDocuments(t *testing.T) {
	srv, _ := testServer(t)
	_ = callTool(t, srv, "create_document", map[string]interface{}{"name": "b"})
	_ = callTool(t, srv, "create_document", map[string]interface{}{"name": "a"})

	r := callTool(t, srv, "list_documents", map[string]interface{}{})
	if text := resultText(r); text != "a\nb" {
		t.Errorf("list = %q", text)
	}
}

func TestOutlineCommandUndoRedo(t *testing.T) {
	srv, _ := testServer(t)
	importErrands(t, srv)

	r := callTool(t, srv, "outline_command", map[string]interface{}{
		"name": "errands",
		"op":   session.OpIndent,
		"id":   "b",
	})
	if r.IsError {
		t.Fatalf("command: %s", resultText(r))
	}
	var res session.Result
	if err := json.Unmarshal([]byte(resultText(r)), &res); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if !res.Changed {
		t.Error("indent should change the document")
	}

	read := func() string {
		return resultText(callTool(t, srv, "read_outline", map[string]interface{}{"name": "errands"}))
	}
	if got := read(); !strings.Contains(got, "\n  - call bob") {
		t.Errorf("after indent = %q", got)
	}

	_ = callTool(t, srv, "undo", map[string]interface{}{"name": "errands"})
	if got := read(); !strings.Contains(got, "\n- call bob") {
		t.Errorf("after undo = %q", got)
	}

	_ = callTool(t, srv, "redo", map[string]interface{}{"name": "errands"})
	if got := read(); !strings.Contains(got, "\n  - call bob") {
		t.Errorf("after redo = %q", got)
	}
}

func TestOutlineCommandSelection(t *testing.T) {
	srv, _ := testServer(t)
	importErrands(t, srv)

	r := callTool(t, srv, "outline_command", map[string]interface{}{
		"name": "errands",
		"op":   session.OpDeleteSelection,
		"ids":  []interface{}{"b"},
	})
	if r.IsError {
		t.Fatalf("command: %s", resultText(r))
	}
	got := resultText(callTool(t, srv, "read_outline", map[string]interface{}{"name": "errands"}))
	if strings.Contains(got, "call bob") {
		t.Errorf("b not deleted: %q", got)
	}
}

func TestOutlineCommandInvalid(t *testing.T) {
	srv, _ := testServer(t)
	importErrands(t, srv)

	r := callTool(t, srv, "outline_command", map[string]interface{}{"name": "errands", "op": "explode"})
	if !r.IsError {
		t.Error("expected error for unknown op")
	}
	r = callTool(t, srv, "outline_command", map[string]interface{}{"name": "errands"})
	if !r.IsError {
		t.Error("expected error for missing op")
	}
}

func TestSearchAndTags(t *testing.T) {
	srv, _ := testServer(t)
	importErrands(t, srv)

	r := callTool(t, srv, "search_nodes", map[string]interface{}{"query": "milk"})
	if !strings.Contains(resultText(r), `"node_id": "a"`) {
		t.Errorf("search = %q", resultText(r))
	}

	r = callTool(t, srv, "nodes_by_tag", map[string]interface{}{"tag": "#shop"})
	if !strings.Contains(resultText(r), "buy milk") {
		t.Errorf("by tag = %q", resultText(r))
	}
}

func TestGetBacklinks(t *testing.T) {
	srv, _ := testServer(t)
	importErrands(t, srv)
	_ = callTool(t, srv, "create_document", map[string]interface{}{"name": "plans"})

	r := callTool(t, srv, "get_backlinks", map[string]interface{}{"name": "plans"})
	if text := resultText(r); text != "errands" {
		t.Errorf("backlinks = %q, want errands", text)
	}

	r = callTool(t, srv, "get_backlinks", map[string]interface{}{"name": "errands"})
	if text := resultText(r); text != "no backlinks found" {
		t.Errorf("backlinks = %q", text)
	}
}

func TestGetContract(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "get_document_contract", map[string]interface{}{})
	if resultText(r) != OutlineContract {
		t.Error("contract mismatch")
	}
}

func TestImportDocument(t *testing.T) {
	srv, store := testServer(t)

	r := callTool(t, srv, "import_document", map[string]interface{}{
		"url":  dataURI("application/yaml", "title: Trip\nroot:\n  children:\n    - text: pack\n"),
		"name": "trip",
	})
	if r.IsError {
		t.Fatalf("import: %s", resultText(r))
	}
	if text := resultText(r); text != "imported: trip (1 nodes)" {
		t.Errorf("result = %q", text)
	}
	if _, err := store.Read("trip"); err != nil {
		t.Errorf("stored document missing: %v", err)
	}

	r = callTool(t, srv, "import_document", map[string]interface{}{
		"url":  dataURI("application/yaml", "title: Trip\n"),
		"name": "trip",
	})
	if !r.IsError {
		t.Error("expected error importing over an existing name")
	}
}

func TestImportDocumentRejects(t *testing.T) {
	srv, _ := testServer(t)
	cases := map[string]string{
		"mime":     dataURI("image/png", "{}"),
		"mismatch": dataURI("application/json", "<opml/>"),
		"plain":    "data:application/json,{}",
		"scheme":   "ftp://example.com/a.json",
		"loopback": "http://127.0.0.1/a.json",
	}
	for name, url := range cases {
		r := callTool(t, srv, "import_document", map[string]interface{}{"url": url, "name": "x"})
		if !r.IsError {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestNameFromURL(t *testing.T) {
	cases := map[string]string{
		"https://example.com/outlines/trip.opml":  "trip",
		"https://example.com/inbox" + storage.Ext: "inbox",
		"https://example.com/a%20b.json":          "a_b",
	}
	for in, want := range cases {
		if got := nameFromURL(in); got != want {
			t.Errorf("nameFromURL(%q) = %q, want %q", in, got, want)
		}
	}
	if got := nameFromURL("data:application/json;base64,e30="); !strings.HasPrefix(got, "import-") {
		t.Errorf("data URI name = %q", got)
	}
}
