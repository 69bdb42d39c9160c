package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/oarkflow/trusty"
	"github.com/oarkflow/trusty/stores"
)

func newTestServer(t *testing.T, opts Options) (*httptest.Server, *stores.MemoryDirectory) {
	t.Helper()
	mem := stores.NewMemoryDirectory()
	engine, err := trusty.NewAccessControlEngine(mem)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	dir := trusty.NewDirectory(mem, mem, mem, mem)
	srv := httptest.NewServer(NewRouter(Deps{Engine: engine, Directory: dir}, opts))
	t.Cleanup(srv.Close)
	return srv, mem
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	return resp
}

func do(t *testing.T, method, url string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("get healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz status = %d", resp.StatusCode)
	}
}

func TestIsAllowedEndpoint(t *testing.T) {
	ctx := context.Background()
	srv, mem := newTestServer(t, Options{})

	role := &trusty.Role{
		ID: "r1", TenantID: "t1", Namespace: "billing", Name: "reader",
		Permissions: []trusty.Permission{{Action: "read", Resource: "invoices/*"}},
	}
	if err := mem.CreateRole(ctx, role); err != nil {
		t.Fatalf("create role: %v", err)
	}
	if err := mem.AssignRole(ctx, "u1", "r1"); err != nil {
		t.Fatalf("assign: %v", err)
	}

	resp := postJSON(t, srv.URL+"/v1/isallowed", trusty.IsAllowedRequest{
		ExternalUserID: "u1", Namespace: "billing", Action: "read", Resource: "invoices/42",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("allow status = %d", resp.StatusCode)
	}
	if res := decode[trusty.IsAllowedResult](t, resp); !res.Result {
		t.Fatalf("expected allow")
	}

	// a deny is still 200, result false
	resp = postJSON(t, srv.URL+"/v1/isallowed", trusty.IsAllowedRequest{
		ExternalUserID: "u1", Namespace: "billing", Action: "write", Resource: "invoices/42",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("deny status = %d", resp.StatusCode)
	}
	if res := decode[trusty.IsAllowedResult](t, resp); res.Result {
		t.Fatalf("expected deny")
	}
}

func TestIsAllowedRejectsMalformedRequest(t *testing.T) {
	srv, _ := newTestServer(t, Options{})

	resp := postJSON(t, srv.URL+"/v1/isallowed", trusty.IsAllowedRequest{
		Namespace: "billing", Action: "read", Resource: "invoices/42",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing external_user_id status = %d", resp.StatusCode)
	}

	resp2, err := http.Post(srv.URL+"/v1/isallowed", "application/json", strings.NewReader("{not json"))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp2.Body.Close()
	if resp2.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad json status = %d", resp2.StatusCode)
	}
}

func TestTenantRoutes(t *testing.T) {
	srv, _ := newTestServer(t, Options{})

	resp := postJSON(t, srv.URL+"/v1/tenants/", trusty.Tenant{Name: "acme"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d", resp.StatusCode)
	}
	created := decode[trusty.Tenant](t, resp)
	if created.ID == "" {
		t.Fatalf("expected generated id")
	}

	resp = do(t, http.MethodPatch, srv.URL+"/v1/tenants/"+created.ID+"/subscribe/billing")
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("subscribe status = %d", resp.StatusCode)
	}

	resp = do(t, http.MethodGet, srv.URL+"/v1/tenants/"+created.ID)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d", resp.StatusCode)
	}
	got := decode[trusty.Tenant](t, resp)
	if len(got.Products) != 1 || got.Products[0] != "billing" {
		t.Fatalf("expected products [billing], got %v", got.Products)
	}

	resp = do(t, http.MethodDelete, srv.URL+"/v1/tenants/"+created.ID)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status = %d", resp.StatusCode)
	}

	resp = do(t, http.MethodGet, srv.URL+"/v1/tenants/"+created.ID)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("get after delete status = %d", resp.StatusCode)
	}
}

func TestRoleAssignmentRoutes(t *testing.T) {
	srv, _ := newTestServer(t, Options{})

	resp := postJSON(t, srv.URL+"/v1/roles/", trusty.Role{
		Name: "reader", TenantID: "t1", Namespace: "billing",
		Permissions: []trusty.Permission{{Action: "read", Resource: "invoices/*"}},
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create role status = %d", resp.StatusCode)
	}
	role := decode[trusty.Role](t, resp)

	resp = do(t, http.MethodPost, srv.URL+"/v1/users/u1/roles/"+role.ID)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("assign status = %d", resp.StatusCode)
	}

	resp = postJSON(t, srv.URL+"/v1/isallowed", trusty.IsAllowedRequest{
		ExternalUserID: "u1", Namespace: "billing", Action: "read", Resource: "invoices/7",
	})
	if res := decode[trusty.IsAllowedResult](t, resp); !res.Result {
		t.Fatalf("expected allow after assignment")
	}

	resp = do(t, http.MethodDelete, srv.URL+"/v1/users/u1/roles/"+role.ID)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("revoke status = %d", resp.StatusCode)
	}

	resp = postJSON(t, srv.URL+"/v1/isallowed", trusty.IsAllowedRequest{
		ExternalUserID: "u1", Namespace: "billing", Action: "read", Resource: "invoices/7",
	})
	if res := decode[trusty.IsAllowedResult](t, resp); res.Result {
		t.Fatalf("expected deny after revoke")
	}

	// assigning a role that does not exist is a 404
	resp = do(t, http.MethodPost, srv.URL+"/v1/users/u1/roles/no-such-role")
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("assign unknown role status = %d", resp.StatusCode)
	}
}

func TestUserinfoRoute(t *testing.T) {
	srv, _ := newTestServer(t, Options{})

	resp := postJSON(t, srv.URL+"/v1/users/", trusty.User{ExternalUserID: "u1", Name: "Alex"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create user status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = do(t, http.MethodGet, srv.URL+"/v1/userinfo/u1")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("userinfo status = %d", resp.StatusCode)
	}
	got := decode[trusty.User](t, resp)
	if got.ExternalUserID != "u1" || got.Name != "Alex" {
		t.Fatalf("unexpected user: %+v", got)
	}

	resp = do(t, http.MethodGet, srv.URL+"/v1/userinfo/unknown")
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown userinfo status = %d", resp.StatusCode)
	}
}

func TestRequireToken(t *testing.T) {
	verify := func(r *http.Request, token string) error {
		if token != "secret" {
			return fmt.Errorf("bad token")
		}
		return nil
	}
	srv, _ := newTestServer(t, Options{Verify: verify})

	// health stays open
	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("get healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz status = %d", resp.StatusCode)
	}

	resp = do(t, http.MethodGet, srv.URL+"/v1/tenants/")
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("no token status = %d", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/v1/tenants/", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad token status = %d", resp.StatusCode)
	}

	req, _ = http.NewRequest(http.MethodGet, srv.URL+"/v1/tenants/", nil)
	req.Header.Set("Authorization", "Bearer secret")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("good token status = %d", resp.StatusCode)
	}
}
