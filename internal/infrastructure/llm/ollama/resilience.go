package ollama

import (
	"errors"
	"net/http"

	"github.com/kirillkom/student-tax-advisor/internal/infrastructure/resilience"
)

// classifyOllamaError adds model-not-found handling on top of the shared HTTP
// classifier: a 404 means the model is not pulled and retrying cannot help.
func classifyOllamaError(err error) resilience.ErrorClassification {
	var statusErr *resilience.StatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}
	return resilience.ClassifyHTTPError(err)
}

func wrapTemporaryIfNeeded(operation string, err error) error {
	return resilience.WrapTemporary(operation, err, classifyOllamaError)
}
