// Package client is the Go consumer of the order-management API used by
// workflow tooling. It owns the submit guard (one in-flight status change
// per order detail), classifies request failures, and feeds the
// projection layer with authoritative re-fetches.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cbgift/api/internal/projection"
	"github.com/cbgift/api/internal/status"
)

// Kind classifies a failed API call so callers can branch on outcome
// without parsing messages.
type Kind string

const (
	KindValidation Kind = "validation"
	KindAuth       Kind = "auth"
	KindNotFound   Kind = "not_found"
	KindServer     Kind = "server"
	KindNetwork    Kind = "network"
)

// UpdateError is the classified failure of an API call. Fields is only set
// for validation failures with per-field detail.
type UpdateError struct {
	Kind    Kind
	Message string
	Fields  map[string]string
}

func (e *UpdateError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// ErrSubmitInFlight is returned when a status change is requested for a
// detail that already has one awaiting a response.
var ErrSubmitInFlight = errors.New("status change already in flight for this detail")

// Client talks to the order-management API.
type Client struct {
	baseURL    string
	httpClient *http.Client

	mu       sync.Mutex
	token    string
	inFlight map[uuid.UUID]struct{}
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithToken sets the initial bearer token.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// New creates a Client for the API at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		inFlight:   make(map[uuid.UUID]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetToken replaces the bearer token, e.g. after a refresh.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// TokenPair is the result of a successful login or refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Login authenticates and stores the issued access token on the client.
func (c *Client) Login(ctx context.Context, email, password string) (TokenPair, error) {
	var pair TokenPair
	err := c.doJSON(ctx, http.MethodPost, "/api/auth/login",
		map[string]string{"email": email, "password": password}, &pair)
	if err != nil {
		return TokenPair{}, err
	}
	c.SetToken(pair.AccessToken)
	return pair, nil
}

// --- Wire payloads ---

// taskPayload is the API's order-detail shape; toDetail maps it onto the
// projection model.
type taskPayload struct {
	OrderDetailID  uuid.UUID    `json:"orderDetailId"`
	OrderID        uuid.UUID    `json:"orderId"`
	OrderCode      string       `json:"orderCode"`
	ProductName    string       `json:"productName"`
	Quantity       int32        `json:"quantity"`
	Status         status.Code  `json:"productionStatus"`
	OrderStatus    *status.Code `json:"orderStatus"`
	LinkFileDesign *string      `json:"linkFileDesign"`
	LinkThankCard  *string      `json:"linkThankCard"`
	LinkImg        *string      `json:"linkImg"`
	Note           *string      `json:"note"`
	Reason         *string      `json:"reason"`
	AssignedAt     *time.Time   `json:"assignedAt"`
}

func (p taskPayload) toDetail() projection.Detail {
	d := projection.Detail{
		OrderDetailID:    p.OrderDetailID,
		OrderID:          p.OrderID,
		OrderCode:        p.OrderCode,
		ProductName:      p.ProductName,
		Quantity:         p.Quantity,
		ProductionStatus: p.Status,
		LinkFileDesign:   p.LinkFileDesign,
		LinkThankCard:    p.LinkThankCard,
		LinkImg:          p.LinkImg,
		Note:             p.Note,
		Reason:           p.Reason,
	}
	if p.OrderStatus != nil {
		d.OrderStatus = *p.OrderStatus
	}
	if p.AssignedAt != nil {
		d.AssignedAt = *p.AssignedAt
	}
	return d
}

func toDetails(payloads []taskPayload) []projection.Detail {
	out := make([]projection.Detail, len(payloads))
	for i, p := range payloads {
		out[i] = p.toDetail()
	}
	return out
}

// --- Designer operations ---

// Tasks fetches the authenticated designer's task list.
func (c *Client) Tasks(ctx context.Context) ([]projection.Detail, error) {
	var payloads []taskPayload
	if err := c.doJSON(ctx, http.MethodGet, "/api/designer/tasks", nil, &payloads); err != nil {
		return nil, err
	}
	return toDetails(payloads), nil
}

// UpdateTaskStatus submits a designer status change for one detail. At
// most one change per detail may be in flight; concurrent submits get
// ErrSubmitInFlight without any network call.
func (c *Client) UpdateTaskStatus(ctx context.Context, detailID uuid.UUID, target status.Code) (projection.Detail, error) {
	if err := c.beginSubmit(detailID); err != nil {
		return projection.Detail{}, err
	}
	defer c.endSubmit(detailID)
	return c.submitTaskStatus(ctx, detailID, target)
}

// submitTaskStatus performs the request without touching the guard; callers
// hold the detail's in-flight slot.
func (c *Client) submitTaskStatus(ctx context.Context, detailID uuid.UUID, target status.Code) (projection.Detail, error) {
	var payload taskPayload
	err := c.doJSON(ctx, http.MethodPut, "/api/designer/tasks/status/"+detailID.String(),
		map[string]int{"productionStatus": int(target)}, &payload)
	if err != nil {
		return projection.Detail{}, err
	}
	return payload.toDetail(), nil
}

// DesignSource is the artifact a designer submits: either a new file to
// upload or a URL to an already-hosted design. Exactly one is set.
type DesignSource struct {
	filename string
	content  io.Reader
	fileURL  string
}

// NewFile builds a DesignSource from file content to be uploaded.
func NewFile(filename string, content io.Reader) DesignSource {
	return DesignSource{filename: filename, content: content}
}

// ExistingURL builds a DesignSource referencing an already-hosted file.
func ExistingURL(url string) DesignSource {
	return DesignSource{fileURL: url}
}

// UploadDesign submits a design artifact for one task and moves it to
// design check.
func (c *Client) UploadDesign(ctx context.Context, detailID uuid.UUID, src DesignSource, note string) (projection.Detail, error) {
	if err := c.beginSubmit(detailID); err != nil {
		return projection.Detail{}, err
	}
	defer c.endSubmit(detailID)

	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	if src.content != nil {
		fw, err := mw.CreateFormFile("DesignFile", src.filename)
		if err != nil {
			return projection.Detail{}, &UpdateError{Kind: KindNetwork, Message: err.Error()}
		}
		if _, err := io.Copy(fw, src.content); err != nil {
			return projection.Detail{}, &UpdateError{Kind: KindNetwork, Message: err.Error()}
		}
	} else {
		if err := mw.WriteField("FileUrl", src.fileURL); err != nil {
			return projection.Detail{}, &UpdateError{Kind: KindNetwork, Message: err.Error()}
		}
	}
	if note != "" {
		if err := mw.WriteField("Note", note); err != nil {
			return projection.Detail{}, &UpdateError{Kind: KindNetwork, Message: err.Error()}
		}
	}
	if err := mw.Close(); err != nil {
		return projection.Detail{}, &UpdateError{Kind: KindNetwork, Message: err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/designer/tasks/"+detailID.String()+"/upload", buf)
	if err != nil {
		return projection.Detail{}, &UpdateError{Kind: KindNetwork, Message: err.Error()}
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	c.authorize(req)

	var payload taskPayload
	if err := c.send(req, &payload); err != nil {
		return projection.Detail{}, err
	}
	return payload.toDetail(), nil
}

// --- Seller / manager operations ---

// UpdateDesignStatus submits a seller review or hold decision for one
// detail.
func (c *Client) UpdateDesignStatus(ctx context.Context, detailID uuid.UUID, target status.Code, reason string) (projection.Detail, error) {
	if err := c.beginSubmit(detailID); err != nil {
		return projection.Detail{}, err
	}
	defer c.endSubmit(detailID)

	var payload taskPayload
	err := c.doJSON(ctx, http.MethodPut, "/api/seller/order/order-details/"+detailID.String()+"/design-status",
		map[string]any{"productionStatus": int(target), "reason": reason}, &payload)
	if err != nil {
		return projection.Detail{}, err
	}
	return payload.toDetail(), nil
}

// ApproveOrRejectDesign applies one review decision to every detail of an
// order awaiting design check.
func (c *Client) ApproveOrRejectDesign(ctx context.Context, orderID uuid.UUID, target status.Code, reason string) ([]projection.Detail, error) {
	var payloads []taskPayload
	err := c.doJSON(ctx, http.MethodPut, "/api/seller/orders/"+orderID.String()+"/approve-or-reject-design",
		map[string]any{"productionStatus": int(target), "reason": reason}, &payloads)
	if err != nil {
		return nil, err
	}
	return toDetails(payloads), nil
}

// HoldRequests fetches the manager hold queue.
func (c *Client) HoldRequests(ctx context.Context) ([]projection.Detail, error) {
	var payloads []taskPayload
	if err := c.doJSON(ctx, http.MethodGet, "/api/manager/hold-requests", nil, &payloads); err != nil {
		return nil, err
	}
	return toDetails(payloads), nil
}

// OrderFilter narrows a ListOrders call. Zero values mean "no filter";
// Page and PageSize fall back to the server defaults when zero.
type OrderFilter struct {
	SearchTerm string
	Status     *status.Code
	FromDate   time.Time
	ToDate     time.Time
	Page       int
	PageSize   int
}

// Order is one seller order with its detail lines mapped onto the
// projection model.
type Order struct {
	OrderID     uuid.UUID
	OrderCode   string
	Status      status.Code
	StatusName  string
	TotalAmount string
	OrderDate   time.Time
	Details     []projection.Detail
}

// OrderPage is one page of the seller order list.
type OrderPage struct {
	Total    int64
	Page     int
	PageSize int
	Orders   []Order
}

type orderPayload struct {
	OrderID     uuid.UUID     `json:"orderId"`
	OrderCode   string        `json:"orderCode"`
	Status      status.Code   `json:"status"`
	StatusName  string        `json:"statusName"`
	TotalAmount string        `json:"totalAmount"`
	OrderDate   time.Time     `json:"orderDate"`
	Details     []taskPayload `json:"details"`
}

func (p orderPayload) toOrder() Order {
	details := toDetails(p.Details)
	for i := range details {
		details[i].OrderID = p.OrderID
		details[i].OrderCode = p.OrderCode
		details[i].OrderStatus = p.Status
	}
	return Order{
		OrderID:     p.OrderID,
		OrderCode:   p.OrderCode,
		Status:      p.Status,
		StatusName:  p.StatusName,
		TotalAmount: p.TotalAmount,
		OrderDate:   p.OrderDate,
		Details:     details,
	}
}

// ListOrders fetches a filtered, paginated page of the seller's orders.
func (c *Client) ListOrders(ctx context.Context, filter OrderFilter) (OrderPage, error) {
	q := url.Values{}
	if filter.SearchTerm != "" {
		q.Set("searchTerm", filter.SearchTerm)
	}
	if filter.Status != nil {
		q.Set("status", strconv.Itoa(int(*filter.Status)))
	}
	if !filter.FromDate.IsZero() {
		q.Set("fromDate", filter.FromDate.Format(time.RFC3339))
	}
	if !filter.ToDate.IsZero() {
		q.Set("toDate", filter.ToDate.Format(time.RFC3339))
	}
	if filter.Page > 0 {
		q.Set("page", strconv.Itoa(filter.Page))
	}
	if filter.PageSize > 0 {
		q.Set("pageSize", strconv.Itoa(filter.PageSize))
	}
	path := "/api/seller"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var payload struct {
		Total    int64          `json:"total"`
		Page     int            `json:"page"`
		PageSize int            `json:"pageSize"`
		Orders   []orderPayload `json:"orders"`
	}
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &payload); err != nil {
		return OrderPage{}, err
	}

	page := OrderPage{
		Total:    payload.Total,
		Page:     payload.Page,
		PageSize: payload.PageSize,
		Orders:   make([]Order, len(payload.Orders)),
	}
	for i, o := range payload.Orders {
		page.Orders[i] = o.toOrder()
	}
	return page, nil
}

// GetOrder fetches one order with its detail lines.
func (c *Client) GetOrder(ctx context.Context, orderID uuid.UUID) (Order, error) {
	var payload orderPayload
	if err := c.doJSON(ctx, http.MethodGet, "/api/seller/orders/"+orderID.String(), nil, &payload); err != nil {
		return Order{}, err
	}
	return payload.toOrder(), nil
}

// --- Submit guard ---

func (c *Client) beginSubmit(detailID uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, busy := c.inFlight[detailID]; busy {
		return ErrSubmitInFlight
	}
	c.inFlight[detailID] = struct{}{}
	return nil
}

func (c *Client) endSubmit(detailID uuid.UUID) {
	c.mu.Lock()
	delete(c.inFlight, detailID)
	c.mu.Unlock()
}

// --- Transport ---

func (c *Client) authorize(req *http.Request) {
	c.mu.Lock()
	token := c.token
	c.mu.Unlock()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return &UpdateError{Kind: KindNetwork, Message: err.Error()}
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return &UpdateError{Kind: KindNetwork, Message: err.Error()}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.authorize(req)

	return c.send(req, out)
}

func (c *Client) send(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &UpdateError{Kind: KindNetwork, Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return errorFromResponse(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &UpdateError{Kind: KindServer, Message: "malformed response: " + err.Error()}
	}
	return nil
}

// errorFromResponse classifies a non-2xx response. The body is best-effort:
// a missing or malformed error payload still yields a usable Kind.
func errorFromResponse(resp *http.Response) *UpdateError {
	var body struct {
		Error   string            `json:"error"`
		Message string            `json:"message"`
		Fields  map[string]string `json:"fields"`
	}
	_ = json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body)
	if body.Error == "" {
		body.Error = body.Message
	}
	if body.Error == "" {
		body.Error = resp.Status
	}

	kind := KindServer
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		kind = KindAuth
	case resp.StatusCode == http.StatusNotFound:
		kind = KindNotFound
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		kind = KindValidation
	}

	return &UpdateError{Kind: kind, Message: body.Error, Fields: body.Fields}
}
