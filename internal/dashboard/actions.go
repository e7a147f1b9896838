package dashboard

import (
	"context"
	"fmt"
	"strings"
	"time"

	"content-sync/internal/collection/domain/model"
	"content-sync/internal/collection/usecase"
	"content-sync/internal/shared/errors"
)

// Actions return model.ActionResult and never panic or return another shape.
// Actions whose result the caller reads back, or chains on, reconcile with
// an awaited refetch; plain list edits schedule a delayed one and rely on
// push for the rest.

// PoemInput is a new poem.
type PoemInput struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	// Date backdates the poem; empty means now.
	Date string `json:"date,omitempty"`
}

// VideoInput is a new video. URL may be any supported platform link or a
// bare YouTube id.
type VideoInput struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	URL         string `json:"url"`
	VideoType   string `json:"video_type,omitempty"`
	IsPublished *bool  `json:"is_published,omitempty"`
	Date        string `json:"date,omitempty"`
}

// MediaAssetInput is an uploaded file reference.
type MediaAssetInput struct {
	AssetType string `json:"asset_type"`
	FileURL   string `json:"file_url"`
}

// LiveSettingsInput configures the live broadcast.
type LiveSettingsInput struct {
	URL     string `json:"url"`
	Enabled bool   `json:"enabled"`
}

// ProfileInput updates the site profile.
type ProfileInput struct {
	ProfileImage string `json:"profile_image"`
	DisplayName  string `json:"display_name,omitempty"`
}

// AddPoem inserts a poem.
func (d *Dashboard) AddPoem(ctx context.Context, in PoemInput) model.ActionResult {
	if strings.TrimSpace(in.Title) == "" {
		return d.fail("add poem", errors.NewValidationError("Title is required"))
	}
	created := in.Date
	if created == "" {
		created = d.timestamp()
	}
	rec, err := d.mutations.Insert(ctx, Poems, model.Record{
		"title":      in.Title,
		"body":       in.Body,
		"created_at": created,
	}, usecase.ReconcileDelayed)
	return d.done("add poem", "Poem added", rec, err)
}

// UpdatePoem applies patch to a poem.
func (d *Dashboard) UpdatePoem(ctx context.Context, id string, patch model.Record) model.ActionResult {
	rec, err := d.mutations.Update(ctx, Poems, id, patch, usecase.ReconcileDelayed)
	return d.done("update poem", "Poem updated", rec, err)
}

// DeletePoem removes a poem.
func (d *Dashboard) DeletePoem(ctx context.Context, id string) model.ActionResult {
	return d.done("delete poem", "Poem deleted", nil, d.mutations.Remove(ctx, Poems, id, usecase.ReconcileDelayed))
}

// AddVideo normalizes the link and inserts the video. A videos table with
// the legacy columns (youtubeId, type, date) gets the legacy row instead.
// The videos store reflects the new row when AddVideo returns.
func (d *Dashboard) AddVideo(ctx context.Context, in VideoInput) model.ActionResult {
	ref, err := ParseVideoURL(in.URL)
	if err != nil {
		return d.fail("add video", err)
	}

	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = "Video " + ref.ID
	}
	videoType := in.VideoType
	if videoType == "" {
		videoType = "long"
	}
	published := true
	if in.IsPublished != nil {
		published = *in.IsPublished
	}
	created := in.Date
	if created == "" {
		created = d.timestamp()
	}

	primary := model.Record{
		"title":        title,
		"description":  nullable(in.Description),
		"youtube_url":  ref.URL,
		"video_url":    ref.URL,
		"platform":     string(ref.Platform),
		"video_type":   videoType,
		"is_published": published,
		"created_at":   created,
	}
	rec, err := d.mutations.Insert(ctx, Videos, primary, usecase.ReconcileAwaited)
	if err != nil && errors.IsSchemaMismatch(err) {
		d.log.Warnf("videos rejected the current columns (%v), retrying with the legacy ones", err)
		rec, err = d.mutations.Insert(ctx, Videos, model.Record{
			"title":     title,
			"youtubeId": ref.ID,
			"type":      videoType,
			"date":      legacyDate(in.Date, d.now()),
		}, usecase.ReconcileAwaited)
	}
	return d.done("add video", "Video added", rec, err)
}

// DeleteVideo removes a video.
func (d *Dashboard) DeleteVideo(ctx context.Context, id string) model.ActionResult {
	return d.done("delete video", "Video deleted", nil, d.mutations.Remove(ctx, Videos, id, usecase.ReconcileDelayed))
}

// AddComment records a reflection from the public site. It waits for approval.
func (d *Dashboard) AddComment(ctx context.Context, in CommentInput) model.ActionResult {
	if ve := in.Validate(); ve.HasErrors() {
		return d.fail("add comment", ve.ToAppError())
	}
	rec, err := d.mutations.Insert(ctx, Comments, in.Record(d.now()), usecase.ReconcileDelayed)
	return d.done("add comment", "Reflection sent for approval", rec, err)
}

// ApproveComment publishes a comment.
func (d *Dashboard) ApproveComment(ctx context.Context, id string) model.ActionResult {
	rec, err := d.mutations.Update(ctx, Comments, id, model.Record{"is_approved": true}, usecase.ReconcileDelayed)
	return d.done("approve comment", "Comment approved", rec, err)
}

// RemoveComment deletes a comment.
func (d *Dashboard) RemoveComment(ctx context.Context, id string) model.ActionResult {
	return d.done("remove comment", "Comment removed", nil, d.mutations.Remove(ctx, Comments, id, usecase.ReconcileDelayed))
}

// ApprovedComments returns the approved comments of one poem or video from
// the current snapshot.
func (d *Dashboard) ApprovedComments(contentType, contentID string) []model.Record {
	return ApprovedComments(d.records(Comments), contentType, contentID)
}

// SendInvite validates and stores an invitation.
func (d *Dashboard) SendInvite(ctx context.Context, in InviteInput) model.ActionResult {
	if ve := in.Validate(); ve.HasErrors() {
		return d.fail("send invite", ve.ToAppError())
	}
	rec, err := d.mutations.Insert(ctx, Invites, in.Record(d.now()), usecase.ReconcileAwaited)
	return d.done("send invite", "Invite sent successfully!", rec, err)
}

// MarkInviteRead flags an invite as read.
func (d *Dashboard) MarkInviteRead(ctx context.Context, id string) model.ActionResult {
	rec, err := d.mutations.Update(ctx, Invites, id, model.Record{"is_read": true}, usecase.ReconcileAwaited)
	return d.done("mark invite read", "Invite marked as read", rec, err)
}

// DeleteInvite removes one invite.
func (d *Dashboard) DeleteInvite(ctx context.Context, id string) model.ActionResult {
	return d.done("delete invite", "Invite deleted", nil, d.mutations.Remove(ctx, Invites, id, usecase.ReconcileAwaited))
}

// ClearAllInvites removes every invite one by one. When a delete fails the
// result carries the ids that were removed before it.
func (d *Dashboard) ClearAllInvites(ctx context.Context) model.ActionResult {
	err := d.mutations.RemoveAll(ctx, Invites, usecase.ReconcileAwaited)
	if pb, ok := errors.AsPartialBatch(err); ok {
		res := d.fail("clear invites", err)
		res.Data = map[string]interface{}{"deleted": pb.Completed}
		return res
	}
	return d.done("clear invites", "All invites cleared", nil, err)
}

// AddMediaAsset stores a media reference. asset_type defaults to profile.
func (d *Dashboard) AddMediaAsset(ctx context.Context, in MediaAssetInput) model.ActionResult {
	if strings.TrimSpace(in.FileURL) == "" {
		return d.fail("add media", errors.NewValidationError("File URL is required"))
	}
	assetType := in.AssetType
	if assetType == "" {
		assetType = "profile"
	}
	rec, err := d.mutations.Insert(ctx, MediaAssets, model.Record{
		"asset_type": assetType,
		"file_url":   in.FileURL,
		"updated_at": d.timestamp(),
	}, usecase.ReconcileAwaited)
	return d.done("add media", "Media added", rec, err)
}

// DeleteMediaAsset removes a media reference.
func (d *Dashboard) DeleteMediaAsset(ctx context.Context, id string) model.ActionResult {
	return d.done("delete media", "Media deleted", nil, d.mutations.Remove(ctx, MediaAssets, id, usecase.ReconcileDelayed))
}

// SaveLiveSettings updates the live settings row, or creates it. The
// broadcast is only enabled with a valid YouTube id; an empty URL clears it.
func (d *Dashboard) SaveLiveSettings(ctx context.Context, in LiveSettingsInput) model.ActionResult {
	id, ok := ParseYouTubeID(in.URL)
	if !ok && strings.TrimSpace(in.URL) != "" {
		return d.fail("save live settings", errors.NewValidationError("Invalid YouTube URL").
			WithCode(errors.CodeUnsupportedVideo).WithCause(errors.ErrUnsupportedVideo))
	}
	payload := model.Record{
		"youtubeId":  id,
		"enabled":    in.Enabled && ok,
		"updated_at": d.timestamp(),
	}
	rec, err := d.upsertFirst(ctx, LiveSettings, payload)
	return d.done("save live settings", "Live settings saved", rec, err)
}

// SaveProfile updates the first profile row, or creates it.
func (d *Dashboard) SaveProfile(ctx context.Context, in ProfileInput) model.ActionResult {
	if strings.TrimSpace(in.ProfileImage) == "" && strings.TrimSpace(in.DisplayName) == "" {
		return d.fail("save profile", errors.NewValidationError("Nothing to save"))
	}
	payload := model.Record{"updated_at": d.timestamp()}
	if in.ProfileImage != "" {
		payload["profile_image"] = in.ProfileImage
	}
	if in.DisplayName != "" {
		payload["display_name"] = in.DisplayName
	}
	rec, err := d.upsertFirst(ctx, Profiles, payload)
	return d.done("save profile", "Profile saved", rec, err)
}

// MarkNotificationRead flags a notification as read.
func (d *Dashboard) MarkNotificationRead(ctx context.Context, id string) model.ActionResult {
	rec, err := d.mutations.Update(ctx, Notifications, id, model.Record{"is_read": true}, usecase.ReconcileAwaited)
	return d.done("mark notification read", "Notification marked as read", rec, err)
}

// upsertFirst updates the first row of a single-row collection as currently
// known, or inserts one when the collection is empty.
func (d *Dashboard) upsertFirst(ctx context.Context, collection string, payload model.Record) (model.Record, error) {
	if rows := d.records(collection); len(rows) > 0 && rows[0].ID() != "" {
		return d.mutations.Update(ctx, collection, rows[0].ID(), payload, usecase.ReconcileAwaited)
	}
	return d.mutations.Insert(ctx, collection, payload, usecase.ReconcileAwaited)
}

func (d *Dashboard) done(action, message string, data interface{}, err error) model.ActionResult {
	if err != nil {
		return d.fail(action, err)
	}
	d.notices.Add(message, NoticeSuccess, 0)
	if rec, ok := data.(model.Record); ok && rec == nil {
		data = nil
	}
	return model.Ok(data)
}

func (d *Dashboard) fail(action string, err error) model.ActionResult {
	d.log.Warnf("%s failed: %v", action, err)
	d.notices.Add(fmt.Sprintf("Error: %v", err), NoticeError, 0)
	return model.Fail(err)
}

// legacyDate returns the YYYY-MM-DD form the legacy videos table stores.
func legacyDate(date string, now time.Time) string {
	if date == "" {
		return now.UTC().Format("2006-01-02")
	}
	if t, err := time.Parse(time.RFC3339, date); err == nil {
		return t.UTC().Format("2006-01-02")
	}
	if len(date) >= 10 {
		return date[:10]
	}
	return date
}
