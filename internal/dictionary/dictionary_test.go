package dictionary

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClient_Check_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`["banan", "banana split", "banant"]`))
	}))
	defer srv.Close()

	c := New(srv.URL+"?w={word}&k={api_key}", "testkey")
	correct, defs, err := c.Check(context.Background(), "banan")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if correct {
		t.Fatal("expected word to be reported as not found")
	}
	if len(defs) != 0 {
		t.Fatalf("expected no definitions, got %v", defs)
	}
}

func TestClient_Check_Found(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"meta":{"id":"apple"},"fl":"noun","shortdef":["a fruit","a tree"]},
			{"meta":{"id":"apple-pie:1"},"fl":"noun","shortdef":["a dessert"]}
		]`))
	}))
	defer srv.Close()

	c := New(srv.URL+"?w={word}&k={api_key}", "testkey")
	correct, defs, err := c.Check(context.Background(), "apple")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !correct {
		t.Fatal("expected word to be reported as found")
	}
	if len(defs) != 2 || defs[0] != "a fruit" {
		t.Fatalf("unexpected definitions: %v", defs)
	}
}

func TestClient_Check_IgnoresNonMatchingFunctionalLabel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"meta":{"id":"apple"},"fl":"interjection","shortdef":["huh"]}]`))
	}))
	defer srv.Close()

	c := New(srv.URL, "testkey")
	correct, defs, err := c.Check(context.Background(), "apple")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !correct {
		t.Fatal("expected correct=true even when no definition passes the label filter")
	}
	if len(defs) != 0 {
		t.Fatalf("expected filtered definitions to be empty, got %v", defs)
	}
}

func TestClient_Check_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := New(srv.URL, "testkey")
	_, _, err := c.Check(context.Background(), "apple")
	if err == nil {
		t.Fatal("expected an error for a 5xx response")
	}
}

func TestClient_Check_CapsDefinitionsAtThree(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"meta":{"id":"go:1"},"fl":"verb","shortdef":["move"]},
			{"meta":{"id":"go:2"},"fl":"verb","shortdef":["function"]},
			{"meta":{"id":"go:3"},"fl":"noun","shortdef":["a try"]},
			{"meta":{"id":"go:4"},"fl":"noun","shortdef":["energy"]}
		]`))
	}))
	defer srv.Close()

	c := New(srv.URL, "testkey")
	correct, defs, err := c.Check(context.Background(), "go")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !correct {
		t.Fatal("expected word to be correct")
	}
	if len(defs) != 3 {
		t.Fatalf("expected definitions capped at 3, got %d", len(defs))
	}
}
