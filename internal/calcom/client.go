// Package calcom is a thin client for the Cal.com API: event-type lookup and
// booking on v2, slot listing on v1.
package calcom

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/otl-fi/assistant/internal/conversation"
)

const (
	defaultV1URL = "https://api.cal.com/v1"
	defaultV2URL = "https://api.cal.com/v2"

	bookingsAPIVersion = "2024-08-13"
)

type Client struct {
	apiKey   string
	username string
	v1URL    string
	v2URL    string
	client   *http.Client
	logger   *slog.Logger
	now      func() time.Time
}

func NewClient(apiKey, username string, logger *slog.Logger) *Client {
	return &Client{
		apiKey:   apiKey,
		username: username,
		v1URL:    defaultV1URL,
		v2URL:    defaultV2URL,
		client:   &http.Client{Timeout: 30 * time.Second},
		logger:   logger,
		now:      time.Now,
	}
}

// SetBaseURLs overrides the API endpoints. Used by tests.
func (c *Client) SetBaseURLs(v1, v2 string) {
	c.v1URL = v1
	c.v2URL = v2
}

// SetClock fixes the availability window's time source. Used by tests.
func (c *Client) SetClock(now func() time.Time) {
	c.now = now
}

type eventTypesResponse struct {
	Data struct {
		EventTypeGroups []struct {
			EventTypes []struct {
				ID              int    `json:"id"`
				Slug            string `json:"slug"`
				Title           string `json:"title"`
				LengthInMinutes int    `json:"lengthInMinutes"`
				Length          int    `json:"length"`
			} `json:"eventTypes"`
		} `json:"eventTypeGroups"`
	} `json:"data"`
}

// ResolveOffering finds the event type with the given slug and returns its
// calendar-side identifier and public booking URL.
func (c *Client) ResolveOffering(ctx context.Context, slug string) (conversation.Offering, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.v2URL+"/event-types", nil)
	if err != nil {
		return conversation.Offering{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return conversation.Offering{}, fmt.Errorf("list event types: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return conversation.Offering{}, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return conversation.Offering{}, fmt.Errorf("list event types: status %d: %s", resp.StatusCode, string(body))
	}

	var parsed eventTypesResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return conversation.Offering{}, fmt.Errorf("parse event types: %w", err)
	}

	for _, group := range parsed.Data.EventTypeGroups {
		for _, et := range group.EventTypes {
			if et.Slug == slug {
				return conversation.Offering{
					ID:         et.ID,
					Slug:       et.Slug,
					Title:      et.Title,
					BookingURL: "https://cal.com/" + c.username + "/" + et.Slug,
				}, nil
			}
		}
	}
	return conversation.Offering{}, fmt.Errorf("event type with slug %q not found", slug)
}

type slotsResponse struct {
	Slots map[string][]struct {
		Time string `json:"time"`
	} `json:"slots"`
}

// ListAvailability fetches raw slot instants for a forward window starting
// tomorrow (UTC midnight) and spanning horizonDays, in the target timezone.
// Returns a sorted list of RFC3339 strings.
func (c *Client) ListAvailability(ctx context.Context, offeringID int, horizonDays int, timezone string) ([]string, error) {
	start := c.now().UTC().Truncate(24 * time.Hour).AddDate(0, 0, 1)
	end := start.AddDate(0, 0, horizonDays)

	q := url.Values{}
	q.Set("apiKey", c.apiKey)
	q.Set("eventTypeId", strconv.Itoa(offeringID))
	q.Set("startTime", start.Format(time.RFC3339))
	q.Set("endTime", end.Format(time.RFC3339))
	q.Set("timeZone", timezone)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.v1URL+"/slots?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("list slots: status %d: %s", resp.StatusCode, string(body))
	}

	var parsed slotsResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("parse slots: %w", err)
	}

	var instants []string
	for _, daySlots := range parsed.Slots {
		for _, slot := range daySlots {
			if slot.Time != "" {
				instants = append(instants, slot.Time)
			}
		}
	}
	sort.Strings(instants)

	c.logger.Debug("availability listed", "event_type_id", offeringID, "slots", len(instants))
	return instants, nil
}

type bookingPayload struct {
	Start         string          `json:"start"`
	Attendee      bookingAttendee `json:"attendee"`
	EventTypeID   int             `json:"eventTypeId"`
	EventTypeSlug string          `json:"eventTypeSlug,omitempty"`
	Username      string          `json:"username,omitempty"`
	Notes         string          `json:"notes,omitempty"`
}

type bookingAttendee struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	TimeZone string `json:"timeZone"`
	Language string `json:"language"`
}

// Commit books the slot. Any non-2xx answer is a failed commit.
func (c *Client) Commit(ctx context.Context, breq conversation.BookingRequest) error {
	name := breq.Name
	if name == "" {
		name = breq.Email
	}
	lang := breq.Language
	if lang == "" {
		lang = "en"
	}

	payload := bookingPayload{
		Start: breq.Start.UTC().Format(time.RFC3339),
		Attendee: bookingAttendee{
			Name:     name,
			Email:    breq.Email,
			TimeZone: breq.Timezone,
			Language: lang,
		},
		EventTypeID: breq.OfferingID,
		Notes:       breq.Notes,
	}
	if breq.Slug != "" && c.username != "" {
		payload.EventTypeSlug = breq.Slug
		payload.Username = c.username
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal booking: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.v2URL+"/bookings", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("cal-api-version", bookingsAPIVersion)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("create booking: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("create booking: status %d: %s", resp.StatusCode, string(respBody))
	}

	c.logger.Info("booking created",
		"event_type_id", breq.OfferingID,
		"start", payload.Start,
		"email", breq.Email,
	)
	return nil
}
