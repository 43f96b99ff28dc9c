package utils

import (
	"net/http"
	"time"
)

// HTTPClient is shared by the auth service client and the sync worker.
var HTTPClient = &http.Client{
	Timeout: 30 * time.Second,
}
