package router

import (
	"fmt"
	"net/http"
	"net/http/httptest"

	"github.com/patric-chuzhbe/urlify/internal/db/memorystorage"
	"github.com/patric-chuzhbe/urlify/internal/session"
)

func ExampleRouter_GetRedirecttobackend() {
	persistent, err := memorystorage.New()
	if err != nil {
		panic(err)
	}
	handler := New(session.New(persistent), nil, nil, nil, nil, "http://localhost:8080")

	request := httptest.NewRequest(http.MethodGet, "/aB3xY9z", nil)
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)

	fmt.Println("Status Code:", recorder.Code)
	fmt.Println("Location:", recorder.Header().Get("Location"))

	// Output:
	// Status Code: 307
	// Location: http://localhost:8080/aB3xY9z
}

func ExampleRouter_GetDashboard() {
	persistent, err := memorystorage.New()
	if err != nil {
		panic(err)
	}
	handler := New(session.New(persistent), nil, nil, nil, nil, "http://localhost:8080")

	request := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)

	fmt.Println("Status Code:", recorder.Code)
	fmt.Println("Location:", recorder.Header().Get("Location"))

	// Output:
	// Status Code: 307
	// Location: /login
}
