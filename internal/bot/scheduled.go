package bot

import (
	"fmt"
	"io"
	"strings"

	"warden/internal/config"

	"go.uber.org/zap"
)

// Keeps a fetched body inside the message length limit.
const postBodyLimit = 1900

// startScheduledPosts registers every scheduled post with the
// scheduler. Invalid schedules were already pruned at rule load, so a
// registration failure here is a bug worth surfacing.
func (b *Bot) startScheduledPosts() error {
	for _, post := range b.rules.ScheduledPosts {
		post := post
		err := b.scheduler.Schedule(post.Name, post.Schedule, func() {
			b.runScheduledPost(post)
		})
		if err != nil {
			return fmt.Errorf("scheduled post %s: %w", post.Name, err)
		}
	}
	return nil
}

// runScheduledPost posts the static message or the fetched source
// body. A failed fetch skips this firing; the schedule keeps running.
func (b *Bot) runScheduledPost(post config.ScheduledPost) {
	content := post.Message
	if post.SourceURL != "" {
		body, err := b.fetchPostBody(post.SourceURL)
		if err != nil {
			b.logger.Warn("scheduled post fetch failed",
				zap.String("name", post.Name), zap.String("url", post.SourceURL), zap.Error(err))
			return
		}
		content = body
	}
	if content == "" {
		return
	}
	b.notifier.Channel(post.ChannelID, content)
	b.logger.Info("scheduled post sent", zap.String("name", post.Name))
}

func (b *Bot) fetchPostBody(url string) (string, error) {
	resp, err := b.http.Get(url)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("status %s", resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, postBodyLimit))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(body)), nil
}
