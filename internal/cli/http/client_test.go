package httpclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"codeexec/internal/executor"
)

func TestExecuteDecodesEnvelope(t *testing.T) {
	var got executor.ExecutionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != executePath {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"code":10000,"message":"Success","data":{"output":"3","executionTimeMs":4,"passed":true,"error":false}}`))
	}))
	defer srv.Close()

	client := New(srv.URL+"/", time.Second)
	res := client.Execute(context.Background(), executor.ExecutionRequest{Code: "print(3)", Language: "python"})
	if !res.Passed || res.Output != "3" || res.ExecutionTimeMs != 4 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if got.Language != "python" || got.Code != "print(3)" {
		t.Fatalf("request not sent: %+v", got)
	}
}

func TestExecuteServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":10002,"message":"Invalid request body"}`))
	}))
	defer srv.Close()

	res := New(srv.URL, time.Second).Execute(context.Background(), executor.ExecutionRequest{Language: "python"})
	if !res.Error || res.ErrorKind != executor.ErrorKindInternal {
		t.Fatalf("expected internal error, got %+v", res)
	}
}

func TestExecuteUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	res := New(url, 200*time.Millisecond).Execute(context.Background(), executor.ExecutionRequest{Language: "python"})
	if !res.Error {
		t.Fatalf("expected error for unreachable service")
	}
}

func TestLanguages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code":10000,"message":"Success","data":[{"id":"c","name":"C","timeoutMs":10000,"compiled":true}]}`))
	}))
	defer srv.Close()

	langs := New(srv.URL, time.Second).Languages()
	if len(langs) != 1 || langs[0].ID != "c" || !langs[0].Compiled {
		t.Fatalf("unexpected languages: %+v", langs)
	}
}
