package content

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// HTTPSource реализует Source через HTTP API headless CMS.
// Ответы ожидаются в конверте {"ok": bool, "result": ..., "description": "..."}.
type HTTPSource struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewHTTPSource создаёт клиента CMS по базовому адресу и токену.
func NewHTTPSource(baseURL, token string) *HTTPSource {
	return &HTTPSource{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{},
	}
}

// Course получает курс с идентификатором id.
func (s *HTTPSource) Course(ctx context.Context, id string) (*Course, error) {
	ctx, cancelFunc := context.WithTimeout(ctx, timeoutRequest)
	defer cancelFunc()

	rawResp, err := s.doRequest(ctx, "courses/"+url.PathEscape(id))
	if err != nil {
		return nil, err
	}

	var course Course
	if err = json.Unmarshal(rawResp, &course); err != nil {
		return nil, fmt.Errorf("failed to decode course %s: %w", id, err)
	}

	if err = validateCourse(&course); err != nil {
		return nil, err
	}

	return &course, nil
}

// Lecture получает лекцию с идентификатором id вместе с вопросами.
func (s *HTTPSource) Lecture(ctx context.Context, id string) (*Lecture, error) {
	ctx, cancelFunc := context.WithTimeout(ctx, timeoutRequest)
	defer cancelFunc()

	rawResp, err := s.doRequest(ctx, "lectures/"+url.PathEscape(id))
	if err != nil {
		return nil, err
	}

	var lecture Lecture
	if err = json.Unmarshal(rawResp, &lecture); err != nil {
		return nil, fmt.Errorf("failed to decode lecture %s: %w", id, err)
	}

	if err = validateLecture(&lecture); err != nil {
		return nil, err
	}

	return &lecture, nil
}

// doRequest выполняет GET запрос к CMS.
// Возвращает поле result в случае успеха.
func (s *HTTPSource) doRequest(ctx context.Context, path string) (json.RawMessage, error) {
	link := s.baseURL + "/" + path

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return nil, err
	}

	request.Header.Set("Accept", "application/json")
	if s.token != "" {
		request.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("failed to do get request for url %s: %w", link, err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body for url %s: %w", link, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected response status code %d for url %s", resp.StatusCode, link)
	}

	var result struct {
		OK     bool            `json:"ok"`
		Result json.RawMessage `json:"result"`
		Error  string          `json:"description"`
	}

	if err = json.Unmarshal(data, &result); err != nil {
		return nil, err
	}

	if !result.OK {
		return nil, fmt.Errorf("cms api error: %s", result.Error)
	}

	return result.Result, nil
}
