package browser

import (
	"strings"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
)

type RecordedResponse struct {
	URL    string    `json:"url"`
	Status int       `json:"status"`
	At     time.Time `json:"at"`
}

func (r RecordedResponse) OK() bool {
	return r.Status < 400
}

// ResponseRecorder keeps responses whose URL contains the marker,
// e.g. the add to cart AJAX calls of the shop.
type ResponseRecorder struct {
	mux       sync.Mutex
	marker    string
	responses []RecordedResponse
}

func NewResponseRecorder(marker string) *ResponseRecorder {
	return &ResponseRecorder{
		marker:    marker,
		responses: []RecordedResponse{},
	}
}

func (r *ResponseRecorder) Attach(page playwright.Page) {
	page.OnResponse(func(response playwright.Response) {
		r.record(response.URL(), response.Status())
	})
}

func (r *ResponseRecorder) record(url string, status int) {
	if r.marker == "" || !strings.Contains(url, r.marker) {
		return
	}

	r.mux.Lock()
	defer r.mux.Unlock()

	r.responses = append(r.responses, RecordedResponse{
		URL:    url,
		Status: status,
		At:     time.Now(),
	})
}

func (r *ResponseRecorder) Responses() []RecordedResponse {
	r.mux.Lock()
	defer r.mux.Unlock()

	return append([]RecordedResponse{}, r.responses...)
}

// Failed returns recorded responses with 4xx or 5xx status.
func (r *ResponseRecorder) Failed() []RecordedResponse {
	var failed []RecordedResponse
	for _, response := range r.Responses() {
		if !response.OK() {
			failed = append(failed, response)
		}
	}
	return failed
}

// Reset forgets responses of previous runs.
func (r *ResponseRecorder) Reset() {
	r.mux.Lock()
	defer r.mux.Unlock()

	r.responses = []RecordedResponse{}
}

func (r *ResponseRecorder) Len() int {
	r.mux.Lock()
	defer r.mux.Unlock()

	return len(r.responses)
}
