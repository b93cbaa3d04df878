package workspace

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
)

// fakeWorkspace is an in-process stand-in for the remote workspace API. It
// records call counts so tests can assert exactly which remote operations a
// sync pass issued.
type fakeWorkspace struct {
	mu        sync.Mutex
	container Container
	pages     map[string]*fakePage
	nextID    int

	createPageCalls  int
	updatePageCalls  int
	appendCalls      int
	deleteBlockCalls int
	schemaUpdates    []map[string]PropertySchema

	// failCreates makes the next N page creations fail with a 500.
	failCreates int

	server *httptest.Server
}

type fakePage struct {
	Properties map[string]interface{}
	Blocks     []Block
}

func newFakeWorkspace(properties ...PropertySchema) *fakeWorkspace {
	props := make(map[string]PropertySchema)
	for _, p := range properties {
		props[p.Name] = p
	}
	fw := &fakeWorkspace{
		container: Container{ID: "cont-1", Title: "Notes", Properties: props},
		pages:     make(map[string]*fakePage),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/containers/search", fw.handleSearch)
	mux.HandleFunc("GET /v1/containers/{id}", fw.handleGetContainer)
	mux.HandleFunc("PATCH /v1/containers/{id}", fw.handleUpdateSchema)
	mux.HandleFunc("POST /v1/pages", fw.handleCreatePage)
	mux.HandleFunc("PATCH /v1/pages/{id}", fw.handleUpdatePage)
	mux.HandleFunc("GET /v1/pages/{id}/blocks", fw.handleGetBlocks)
	mux.HandleFunc("POST /v1/pages/{id}/blocks", fw.handleAppendBlocks)
	mux.HandleFunc("DELETE /v1/blocks/{id}", fw.handleDeleteBlock)
	fw.server = httptest.NewServer(mux)
	return fw
}

func (fw *fakeWorkspace) Close() { fw.server.Close() }

func (fw *fakeWorkspace) URL() string { return fw.server.URL }

func writeFakeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeFakeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]string{"code": code, "message": message},
	})
}

func (fw *fakeWorkspace) handleSearch(w http.ResponseWriter, r *http.Request) {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	writeFakeJSON(w, map[string]interface{}{"containers": []Container{fw.container}})
}

func (fw *fakeWorkspace) handleGetContainer(w http.ResponseWriter, r *http.Request) {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	if r.PathValue("id") != fw.container.ID {
		writeFakeError(w, http.StatusNotFound, "not_found", "no such container")
		return
	}
	writeFakeJSON(w, fw.container)
}

func (fw *fakeWorkspace) handleUpdateSchema(w http.ResponseWriter, r *http.Request) {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	var req struct {
		Properties map[string]PropertySchema `json:"properties"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFakeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	fw.schemaUpdates = append(fw.schemaUpdates, req.Properties)
	for name, p := range req.Properties {
		p.Name = name
		p.ID = fmt.Sprintf("prop-%d", len(fw.container.Properties)+1)
		fw.container.Properties[name] = p
	}
	writeFakeJSON(w, fw.container)
}

func (fw *fakeWorkspace) handleCreatePage(w http.ResponseWriter, r *http.Request) {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	fw.createPageCalls++
	if fw.failCreates > 0 {
		fw.failCreates--
		writeFakeError(w, http.StatusInternalServerError, "internal", "deliberate failure")
		return
	}

	var req struct {
		ContainerID string                 `json:"containerId"`
		Properties  map[string]interface{} `json:"properties"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFakeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	fw.nextID++
	id := fmt.Sprintf("page-%d", fw.nextID)
	fw.pages[id] = &fakePage{Properties: req.Properties}
	writeFakeJSON(w, Page{ID: id, Properties: req.Properties})
}

func (fw *fakeWorkspace) handleUpdatePage(w http.ResponseWriter, r *http.Request) {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	fw.updatePageCalls++
	page, ok := fw.pages[r.PathValue("id")]
	if !ok {
		writeFakeError(w, http.StatusNotFound, "not_found", "no such page")
		return
	}
	var req struct {
		Properties map[string]interface{} `json:"properties"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFakeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	page.Properties = req.Properties
	writeFakeJSON(w, Page{ID: r.PathValue("id"), Properties: page.Properties})
}

func (fw *fakeWorkspace) handleGetBlocks(w http.ResponseWriter, r *http.Request) {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	page, ok := fw.pages[r.PathValue("id")]
	if !ok {
		writeFakeError(w, http.StatusNotFound, "not_found", "no such page")
		return
	}
	writeFakeJSON(w, map[string]interface{}{"blocks": page.Blocks})
}

func (fw *fakeWorkspace) handleAppendBlocks(w http.ResponseWriter, r *http.Request) {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	fw.appendCalls++
	page, ok := fw.pages[r.PathValue("id")]
	if !ok {
		writeFakeError(w, http.StatusNotFound, "not_found", "no such page")
		return
	}
	var req struct {
		Blocks []Block `json:"blocks"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFakeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	for i := range req.Blocks {
		fw.nextID++
		req.Blocks[i].ID = fmt.Sprintf("block-%d", fw.nextID)
	}
	page.Blocks = append(page.Blocks, req.Blocks...)
	writeFakeJSON(w, map[string]interface{}{"blocks": page.Blocks})
}

func (fw *fakeWorkspace) handleDeleteBlock(w http.ResponseWriter, r *http.Request) {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	fw.deleteBlockCalls++
	id := r.PathValue("id")
	for _, page := range fw.pages {
		for i, b := range page.Blocks {
			if b.ID == id {
				page.Blocks = append(page.Blocks[:i], page.Blocks[i+1:]...)
				writeFakeJSON(w, map[string]bool{"deleted": true})
				return
			}
		}
	}
	writeFakeError(w, http.StatusNotFound, "not_found", "no such block")
}

// page returns a copy of one stored page for assertions.
func (fw *fakeWorkspace) page(id string) (fakePage, bool) {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	p, ok := fw.pages[id]
	if !ok {
		return fakePage{}, false
	}
	return *p, true
}

func (fw *fakeWorkspace) pageCount() int {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	return len(fw.pages)
}
