package sharepoint_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"

	"github.com/louiss0/access-sharepoint-migrator/access"
	"github.com/louiss0/access-sharepoint-migrator/config"
	"github.com/louiss0/access-sharepoint-migrator/sharepoint"
)

func TestSharePoint(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "SharePoint Suite")
}

type subRequest struct {
	ID   string `json:"id"`
	URL  string `json:"url"`
	Body struct {
		Fields map[string]any `json:"fields"`
	} `json:"body"`
}

// fakeGraph records requests and answers the handful of Graph routes the connector uses.
type fakeGraph struct {
	mu          sync.Mutex
	lists       map[string]string
	createdBody map[string]any
	batchSizes  []int
	// failItem makes the sub-request with this id answer 429.
	failItem string
	// failBatch makes every $batch call answer this status.
	failBatch int
	// dropItem leaves the sub-request with this id unanswered.
	dropItem string
	// strayIDs are answered with 201 in addition to the real sub-requests.
	strayIDs []string
	headers   []http.Header
}

func (f *fakeGraph) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.headers = append(f.headers, r.Header.Clone())
	w.Header().Set("Content-Type", "application/json")

	writeJSON := func(status int, body any) {
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}
	notFound := map[string]any{"error": map[string]string{"code": "itemNotFound", "message": "The resource could not be found."}}

	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/sites/contoso.sharepoint.com:/sites/hr":
		writeJSON(http.StatusOK, map[string]string{"id": "site-1", "webUrl": "https://contoso.sharepoint.com/sites/hr"})

	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/sites/site-1/lists/"):
		name := strings.TrimPrefix(r.URL.Path, "/sites/site-1/lists/")
		id, ok := f.lists[name]
		if !ok {
			writeJSON(http.StatusNotFound, notFound)
			return
		}
		writeJSON(http.StatusOK, map[string]string{"id": id, "displayName": name})

	case r.Method == http.MethodPost && r.URL.Path == "/sites/site-1/lists":
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.createdBody = body
		name := body["displayName"].(string)
		f.lists[name] = "list-" + strconv.Itoa(len(f.lists)+1)
		writeJSON(http.StatusCreated, map[string]string{"id": f.lists[name], "displayName": name, "webUrl": "https://contoso/" + name})

	case r.Method == http.MethodPost && r.URL.Path == "/$batch":
		if f.failBatch != 0 {
			w.Header().Set("Retry-After", "3")
			writeJSON(f.failBatch, map[string]any{"error": map[string]string{"code": "serviceNotAvailable", "message": "try later"}})
			return
		}

		var body struct {
			Requests []subRequest `json:"requests"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.batchSizes = append(f.batchSizes, len(body.Requests))

		kept := lo.Filter(body.Requests, func(req subRequest, _ int) bool { return req.ID != f.dropItem })
		responses := lo.Map(kept, func(req subRequest, _ int) map[string]any {
			if req.ID == f.failItem {
				return map[string]any{
					"id":      req.ID,
					"status":  http.StatusTooManyRequests,
					"headers": map[string]string{"retry-after": "7"},
					"body":    map[string]any{"error": map[string]string{"code": "activityLimitReached", "message": "throttled"}},
				}
			}
			return map[string]any{"id": req.ID, "status": http.StatusCreated, "body": map[string]any{"fields": req.Body.Fields}}
		})
		for _, id := range f.strayIDs {
			responses = append(responses, map[string]any{"id": id, "status": http.StatusCreated})
		}
		writeJSON(http.StatusOK, map[string]any{"responses": responses})

	default:
		writeJSON(http.StatusNotFound, notFound)
	}
}

var _ = Describe("Connector", func() {
	assert := assert.New(GinkgoT())

	var (
		ctx       context.Context
		graph     *fakeGraph
		server    *httptest.Server
		connector *sharepoint.Connector
		cfg       config.SharePoint
	)

	BeforeEach(func() {
		ctx = context.Background()
		graph = &fakeGraph{lists: map[string]string{"Existing": "list-existing"}}
		server = httptest.NewServer(graph)
		DeferCleanup(server.Close)

		cfg = config.SharePoint{SiteURL: "https://contoso.sharepoint.com/sites/hr/"}
		connector = sharepoint.NewConnector(cfg, sharepoint.StaticToken("token-1"),
			sharepoint.WithHTTPClient(server.Client()),
			sharepoint.WithGraphURL(server.URL+"/"),
		)
	})

	It("rejects list operations before Authenticate", func() {
		_, err := connector.CreateList(ctx, "Employees", nil)
		assert.ErrorIs(err, sharepoint.ErrNotAuthenticated)

		_, err = connector.InsertItems(ctx, sharepoint.List{ID: "x"}, []sharepoint.Item{{Title: "1"}})
		assert.ErrorIs(err, sharepoint.ErrNotAuthenticated)
	})

	Describe("Authenticate", func() {
		It("resolves the site id with a bearer token", func() {
			Expect(connector.Authenticate(ctx)).To(Succeed())

			assert.Equal("site-1", connector.SiteID())
			assert.Equal("Bearer token-1", graph.headers[0].Get("Authorization"))
			assert.Equal("a2sp/dev", graph.headers[0].Get("User-Agent"))
		})

		It("surfaces Graph errors", func() {
			cfg.SiteURL = "https://contoso.sharepoint.com/sites/missing"
			connector = sharepoint.NewConnector(cfg, sharepoint.StaticToken("t"),
				sharepoint.WithHTTPClient(server.Client()), sharepoint.WithGraphURL(server.URL))

			err := connector.Authenticate(ctx)

			var graphErr *sharepoint.GraphError
			assert.ErrorAs(err, &graphErr)
			assert.Equal(http.StatusNotFound, graphErr.StatusCode)
			assert.Equal("itemNotFound", graphErr.Code)
			assert.False(graphErr.Retryable())
		})

		It("fails when no token can be acquired", func() {
			tokens := sharepoint.TokenFunc(func(context.Context) (string, error) {
				return "", fmt.Errorf("%w: bad secret", sharepoint.ErrAuthentication)
			})
			connector = sharepoint.NewConnector(cfg, tokens, sharepoint.WithGraphURL(server.URL))

			assert.ErrorIs(connector.Authenticate(ctx), sharepoint.ErrAuthentication)
			assert.Empty(graph.headers)
		})
	})

	Describe("CreateList", func() {
		columns := []access.Column{
			{Name: "ID", Type: access.Integer},
			{Name: "First Name", Type: access.Text},
			{Name: "Notes", Type: access.Memo, Nullable: true},
			{Name: "Salary", Type: access.Currency, Nullable: true},
			{Name: "Photo", Type: access.Binary, Nullable: true},
		}

		BeforeEach(func() {
			Expect(connector.Authenticate(ctx)).To(Succeed())
		})

		It("returns an existing list without creating it", func() {
			list, err := connector.CreateList(ctx, "Existing", columns)

			assert.NoError(err)
			assert.Equal("list-existing", list.ID)
			assert.False(list.Created)
			assert.Equal("SourceID", list.Columns["ID"])
			assert.Nil(graph.createdBody)
		})

		It("creates a generic list with one column per migratable source column", func() {
			list, err := connector.CreateList(ctx, "Employees", columns)

			assert.NoError(err)
			assert.True(list.Created)
			assert.Equal("Employees", list.Name)
			assert.Equal(map[string]string{
				"ID":         "SourceID",
				"First Name": "First_Name",
				"Notes":      "Notes",
				"Salary":     "Salary",
			}, list.Columns)

			assert.Equal(map[string]any{"template": "genericList"}, graph.createdBody["list"])

			created := graph.createdBody["columns"].([]any)
			assert.Len(created, 4)
			first := created[0].(map[string]any)
			assert.Equal("SourceID", first["name"])
			assert.Equal("ID", first["displayName"])
			assert.Equal(true, first["required"])
			assert.Equal(map[string]any{"decimalPlaces": "none"}, first["number"])

			notes := created[2].(map[string]any)
			assert.Equal(map[string]any{"allowMultipleLines": true}, notes["text"])
		})
	})

	Describe("InsertItems", func() {
		var list sharepoint.List

		items := lo.Times(45, func(i int) sharepoint.Item {
			return sharepoint.Item{
				Title:  strconv.Itoa(i + 1),
				Fields: map[string]any{"First Name": fmt.Sprintf("user-%d", i), "Photo": nil},
			}
		})

		BeforeEach(func() {
			Expect(connector.Authenticate(ctx)).To(Succeed())
			list = sharepoint.List{ID: "list-1", Name: "Employees", Columns: map[string]string{"First Name": "First_Name"}}
		})

		It("sends at most 20 sub-requests per batch", func() {
			result, err := connector.InsertItems(ctx, list, items)

			assert.NoError(err)
			assert.Equal(45, result.Inserted)
			assert.Equal(45, result.Processed)
			assert.Empty(result.Failures)
			assert.Equal([]int{20, 20, 5}, graph.batchSizes)
		})

		It("reports rejected items by index", func() {
			graph.failItem = "27"

			result, err := connector.InsertItems(ctx, list, items)

			assert.NoError(err)
			assert.Equal(44, result.Inserted)
			assert.Len(result.Failures, 1)
			assert.Equal(27, result.Failures[0].Index)

			var graphErr *sharepoint.GraphError
			assert.True(errors.As(result.Failures[0].Err, &graphErr))
			assert.True(graphErr.Retryable())
			assert.Equal(7*time.Second, graphErr.RetryAfter)
			assert.Equal("activityLimitReached", graphErr.Code)
		})

		It("reports unanswered sub-requests as retryable failures", func() {
			graph.dropItem = "3"

			result, err := connector.InsertItems(ctx, list, items[:5])

			assert.NoError(err)
			assert.Equal(5, result.Processed)
			assert.Equal(4, result.Inserted)
			Expect(result.Failures).To(HaveLen(1))
			assert.Equal(3, result.Failures[0].Index)

			var graphErr *sharepoint.GraphError
			assert.True(errors.As(result.Failures[0].Err, &graphErr))
			assert.True(graphErr.Retryable())
		})

		It("ignores answers for ids outside the batch and repeated ids", func() {
			graph.strayIDs = []string{"7", "-1", "abc", "0"}

			result, err := connector.InsertItems(ctx, list, items[:2])

			assert.NoError(err)
			assert.Equal(2, result.Inserted)
			assert.Empty(result.Failures)
		})

		It("returns whole batch failures as retryable errors", func() {
			graph.failBatch = http.StatusServiceUnavailable

			result, err := connector.InsertItems(ctx, list, items)

			var graphErr *sharepoint.GraphError
			assert.ErrorAs(err, &graphErr)
			assert.True(graphErr.Retryable())
			assert.Equal(3*time.Second, graphErr.RetryAfter)
			assert.Equal(0, result.Processed)
		})
	})
})

var _ = DescribeTable("InternalName",
	func(column, want string) {
		Expect(sharepoint.InternalName(column)).To(Equal(want))
	},
	Entry("keeps plain names", "Salary", "Salary"),
	Entry("replaces spaces and symbols", "Unit Price ($)", "Unit_Price"),
	Entry("prefixes leading digits", "2023 Total", "F2023_Total"),
	Entry("prefixes built-in fields", "title", "Sourcetitle"),
	Entry("falls back for empty names", "#", "Column"),
)

var _ = Describe("ColumnMapping", func() {
	It("deduplicates names that sanitize to the same value", func() {
		mapping := sharepoint.ColumnMapping([]access.Column{
			{Name: "a b", Type: access.Text},
			{Name: "a-b", Type: access.Text},
			{Name: "blob", Type: access.Binary},
		})

		Expect(mapping).To(Equal(map[string]string{"a b": "a_b", "a-b": "a_b_2"}))
	})
})
