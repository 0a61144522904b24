package content

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/brayobiz/campus-hub-sub000/internal/backend"
	"github.com/brayobiz/campus-hub-sub000/internal/models"
	"github.com/brayobiz/campus-hub-sub000/internal/repository"
)

const (
	maxCommentLen    = 500
	commentPageLimit = 100
)

// GetConfession loads a confession with the viewer's liked state.
func (s *Service) GetConfession(ctx context.Context, viewerID, id string) (*models.Confession, error) {
	c, err := s.repos.Confessions.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, models.NewNotFoundError("Confession", id)
	}
	if err != nil {
		return nil, backend.Wrap(err)
	}
	if viewerID != "" {
		if c.Liked, err = s.repos.Confessions.IsLiked(ctx, viewerID, id); err != nil {
			return nil, backend.Wrap(err)
		}
	}
	return c, nil
}

// Like counts the like on c at once, writes it, then replaces the counters
// with the stored truth. When the write fails the optimistic change is
// undone by the same re-read.
func (s *Service) Like(ctx context.Context, user models.SessionUser, c *models.Confession) error {
	if c.Liked {
		return nil
	}
	err := s.react(ctx, user.ID, c, 1, func() error {
		return s.repos.Confessions.Like(ctx, user.ID, c.ID)
	})
	if err == nil && c.UserID != user.ID {
		s.notify(ctx, &models.Notification{
			UserID: c.UserID,
			Type:   "confession_like",
			Title:  "Someone liked your confession",
			Body:   excerpt(c.Content),
			Link:   "/feeds/confessions#" + c.ID,
		})
	}
	return err
}

// Unlike is the inverse of Like.
func (s *Service) Unlike(ctx context.Context, user models.SessionUser, c *models.Confession) error {
	if !c.Liked {
		return nil
	}
	return s.react(ctx, user.ID, c, -1, func() error {
		return s.repos.Confessions.Unlike(ctx, user.ID, c.ID)
	})
}

func (s *Service) react(ctx context.Context, userID string, c *models.Confession, delta int, write func() error) error {
	c.LikesCount += delta
	c.Liked = delta > 0

	werr := write()
	if rerr := s.reconcile(ctx, userID, c); rerr != nil {
		if werr != nil {
			c.LikesCount -= delta
			c.Liked = !c.Liked
		}
		contentLog.Error(ctx, "failed to reconcile confession counters", rerr, map[string]any{"confession_id": c.ID})
		if werr == nil {
			return backend.Wrap(rerr)
		}
	}
	if werr != nil {
		return backend.Wrap(werr)
	}
	return nil
}

// Comments lists the replies of a confession, oldest first.
func (s *Service) Comments(ctx context.Context, confessionID string) ([]models.ConfessionComment, error) {
	rows, err := s.repos.Confessions.ListComments(ctx, confessionID, commentPageLimit)
	if err != nil {
		return nil, backend.Wrap(err)
	}
	return rows, nil
}

// AddComment posts a reply and bumps the comment counter optimistically.
func (s *Service) AddComment(ctx context.Context, user models.SessionUser, c *models.Confession, text string) (*models.ConfessionComment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, models.NewValidationError("Comment cannot be empty")
	}
	if utf8.RuneCountInString(text) > maxCommentLen {
		return nil, models.NewValidationError(fmt.Sprintf("Comments are limited to %d characters", maxCommentLen))
	}

	comment := &models.ConfessionComment{
		ConfessionID: c.ID,
		UserID:       user.ID,
		Content:      text,
		AuthorName:   user.Name,
	}
	c.CommentsCount++
	werr := s.repos.Confessions.AddComment(ctx, comment)
	if rerr := s.reconcile(ctx, user.ID, c); rerr != nil {
		if werr != nil {
			c.CommentsCount--
		}
		contentLog.Error(ctx, "failed to reconcile confession counters", rerr, map[string]any{"confession_id": c.ID})
	}
	if werr != nil {
		return nil, backend.Wrap(werr)
	}

	if c.UserID != user.ID {
		s.notify(ctx, &models.Notification{
			UserID: c.UserID,
			Type:   "confession_comment",
			Title:  "New comment on your confession",
			Body:   excerpt(text),
			Link:   "/confessions/" + c.ID + "/comments",
		})
	}
	return comment, nil
}

// reconcile replaces the counters of c with the stored counts and persists
// them on the confession row.
func (s *Service) reconcile(ctx context.Context, userID string, c *models.Confession) error {
	likes, err := s.repos.Confessions.CountLikes(ctx, c.ID)
	if err != nil {
		return err
	}
	comments, err := s.repos.Confessions.CountComments(ctx, c.ID)
	if err != nil {
		return err
	}
	liked, err := s.repos.Confessions.IsLiked(ctx, userID, c.ID)
	if err != nil {
		return err
	}
	c.LikesCount, c.CommentsCount, c.Liked = int(likes), int(comments), liked
	return s.repos.Confessions.SetCounters(ctx, c.ID, likes, comments)
}

func excerpt(s string) string {
	const max = 80
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max]) + "…"
}
