package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"campaign-manager-system/models"
	"campaign-manager-system/utils"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProfileSyncWorker mirrors account-service profiles (email, push token,
// username) into the user_profiles table. The notification channels read
// from the mirror so a dispatch never blocks on the account service.
type ProfileSyncWorker struct {
	DB       *gorm.DB
	BaseURL  string
	Path     string
	Token    string
	Interval time.Duration
}

func NewProfileSyncWorker(db *gorm.DB, baseURL, path, token string, interval time.Duration) *ProfileSyncWorker {
	return &ProfileSyncWorker{
		DB:       db,
		BaseURL:  baseURL,
		Path:     path,
		Token:    token,
		Interval: interval,
	}
}

// remoteProfile mirrors the account service's public profile payload.
type remoteProfile struct {
	ExternalID string  `json:"external_id"`
	Username   string  `json:"username"`
	Email      string  `json:"email"`
	AvatarURL  *string `json:"avatar_url"`
	PushToken  string  `json:"push_token"`
}

func (w *ProfileSyncWorker) fetchChanged(ctx context.Context, since time.Time) ([]remoteProfile, error) {
	u, err := url.Parse(w.BaseURL + w.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to parse base URL: %w", err)
	}
	q := u.Query()
	q.Set("since", since.UTC().Format(time.RFC3339))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, "GET", u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Service-Token", w.Token)

	resp, err := utils.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call account service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("account service returned status %d: %s", resp.StatusCode, string(body))
	}

	var response struct {
		Profiles []remoteProfile `json:"profiles"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode account service response: %w", err)
	}
	return response.Profiles, nil
}

// Start polls for changed profiles and upserts them into the mirror.
// The cursor only advances after a successful upsert, so a failed window
// is retried on the next tick.
func (w *ProfileSyncWorker) Start(ctx context.Context) {
	log.Println("Starting profile sync worker...")
	lastSyncTime := time.Now().UTC().Add(-24 * time.Hour)

	ticker := time.NewTicker(w.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Profile sync stopped.")
			return
		case <-ticker.C:
			tickTime := time.Now().UTC()

			profiles, err := w.fetchChanged(ctx, lastSyncTime)
			if err != nil {
				log.Printf("❌ Error polling profiles: %v", err)
				continue
			}
			if len(profiles) == 0 {
				lastSyncTime = tickTime
				continue
			}

			now := time.Now()
			mirrors := make([]models.UserProfile, 0, len(profiles))
			for _, p := range profiles {
				if p.ExternalID == "" {
					continue
				}
				mirrors = append(mirrors, models.UserProfile{
					ExternalUserID: p.ExternalID,
					Username:       p.Username,
					Email:          p.Email,
					AvatarURL:      p.AvatarURL,
					PushToken:      p.PushToken,
					LastSyncedAt:   &now,
				})
			}
			if len(mirrors) == 0 {
				lastSyncTime = tickTime
				continue
			}

			if err := w.DB.Clauses(
				clause.OnConflict{
					Columns: []clause.Column{{Name: "external_user_id"}},
					DoUpdates: clause.AssignmentColumns([]string{
						"username",
						"email",
						"avatar_url",
						"push_token",
						"last_synced_at",
						"updated_at",
					}),
				},
			).Create(&mirrors).Error; err != nil {
				log.Printf("❌ Failed to upsert %d profile(s): %v", len(mirrors), err)
				// Cursor stays put — retry the same window next tick
				continue
			}

			lastSyncTime = tickTime
			log.Printf("✅ Synced %d profile(s) into user_profiles.", len(mirrors))
		}
	}
}
