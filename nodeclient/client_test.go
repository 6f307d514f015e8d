package nodeclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHTTPNodeClientHead(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chains/main/blocks/head/header" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(Head{Hash: "BLhead", Level: 1000, ChainID: "NetXYZ"})
	}))
	defer srv.Close()

	c := NewHTTPNodeClient(srv.URL, "", nil)
	head, err := c.Head(context.Background(), "main")
	if err != nil {
		t.Fatalf("Head: %v", err)
	}
	if head.Hash != "BLhead" || head.Level != 1000 {
		t.Errorf("unexpected head: %+v", head)
	}
}

func TestHTTPNodeClientSendsBearerToken(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode("NetXYZ")
	}))
	defer srv.Close()

	c := NewHTTPNodeClient(srv.URL, "s3cr3t-token", nil)
	if _, err := c.ChainID(context.Background(), "main"); err != nil {
		t.Fatalf("ChainID: %v", err)
	}
	if gotAuth != "Bearer s3cr3t-token" {
		t.Errorf("Authorization header = %q, want Bearer token", gotAuth)
	}
}

func TestHTTPNodeClientNonOKStatusReturnsRPCError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`[{"kind":"temporary","id":"proto.alpha.not_enough_endorsements","minimum":3}]`))
	}))
	defer srv.Close()

	c := NewHTTPNodeClient(srv.URL, "", nil)
	_, err := c.PreapplyBlock(context.Background(), "main", "head", ShellHeader{}, time.Now())
	if err == nil {
		t.Fatal("expected an error for the 409 response")
	}
	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) {
		t.Fatalf("expected *RPCError, got %T: %v", err, err)
	}
	if rpcErr.Status != http.StatusConflict {
		t.Errorf("Status = %d, want %d", rpcErr.Status, http.StatusConflict)
	}
	required, found := RequiredEndorsements(rpcErr.Body)
	if !found || required != 3 {
		t.Errorf("RequiredEndorsements(rpcErr.Body) = (%d, %v), want (3, true)", required, found)
	}
}

func TestHTTPNodeClientInjectBlock(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("chain") != "NetXYZ" {
			t.Errorf("expected chain query param NetXYZ, got %q", r.URL.Query().Get("chain"))
		}
		json.NewEncoder(w).Encode("BLnewblock")
	}))
	defer srv.Close()

	c := NewHTTPNodeClient(srv.URL, "", nil)
	hash, err := c.InjectBlock(context.Background(), "NetXYZ", "deadbeef")
	if err != nil {
		t.Fatalf("InjectBlock: %v", err)
	}
	if hash != "BLnewblock" {
		t.Errorf("hash = %q, want BLnewblock", hash)
	}
}
