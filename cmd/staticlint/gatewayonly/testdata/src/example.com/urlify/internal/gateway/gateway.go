package gateway

import "net/http"

func Ping() error {
	resp, err := http.Get("http://localhost:8080/api")
	if err != nil {
		return err
	}
	return resp.Body.Close()
}
