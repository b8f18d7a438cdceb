package http

import (
	"context"
	"fmt"
	"net/http"
)

// TerminationClient completes an alert on the backend once arrival is confirmed.
type TerminationClient struct {
	client *http.Client
}

func NewTerminationClient() *TerminationClient {
	return &TerminationClient{client: newClient()}
}

// Terminate posts an empty JSON object to url. Any 2xx is success.
func (c *TerminationClient) Terminate(ctx context.Context, url string, headers map[string]string) error {
	status, err := postJSON(ctx, c.client, url, []byte("{}"), headers)
	if err != nil {
		return err
	}
	if status < 200 || status >= 300 {
		return fmt.Errorf("termination: unexpected status %d", status)
	}
	return nil
}
