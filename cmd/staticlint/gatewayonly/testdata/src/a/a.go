package a

import (
	"context"
	"net/http"
)

func fetch(ctx context.Context) error {
	resp, err := http.Get("http://localhost:8080/api/urls/my-urls") // want `http.Get outside internal/gateway`
	if err != nil {
		return err
	}
	resp.Body.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://localhost:8080/api/analytics/all", nil) // want `http.NewRequestWithContext outside internal/gateway`
	if err != nil {
		return err
	}
	_, err = http.DefaultClient.Do(req) // want `http.DefaultClient outside internal/gateway`
	return err
}

func serve(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func client(c *http.Client) {
	_, _ = c.Get("http://localhost:8080/")
}
