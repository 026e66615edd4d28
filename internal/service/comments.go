package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/iliyamo/civic-budget/internal/model"
	"github.com/iliyamo/civic-budget/internal/repository"
)

const (
	minCommentLen = 3
	maxCommentLen = 1000
)

// CommentService posts and administers project comments.
type CommentService struct {
	Comments  CommentStore
	Projects  ProjectStore
	Advisor   Advisor
	AITimeout time.Duration
	Log       *slog.Logger
}

func NewCommentService(comments CommentStore, projects ProjectStore, advisor Advisor, aiTimeout time.Duration, log *slog.Logger) *CommentService {
	return &CommentService{Comments: comments, Projects: projects, Advisor: advisor, AITimeout: aiTimeout, Log: log}
}

// AddComment posts a comment on a project. With an advisor configured the
// comment is screened first; a screening failure lets the comment through.
// A comment published immediately pays its author the comment reward.
func (s *CommentService) AddComment(ctx context.Context, who Principal, projectID uint64, content string) (model.Comment, error) {
	content = strings.TrimSpace(content)
	n := utf8.RuneCountInString(content)
	if n < minCommentLen || n > maxCommentLen {
		return model.Comment{}, errf(KindInvalid, "comment must be %d to %d characters", minCommentLen, maxCommentLen)
	}
	if _, err := s.Projects.GetByID(ctx, projectID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Comment{}, errf(KindNotFound, "project %d not found", projectID)
		}
		return model.Comment{}, err
	}

	c := model.Comment{ProjectID: projectID, UserID: who.ID, Content: content, IsApproved: true}
	if s.Advisor != nil {
		v := s.screen(ctx, content)
		score := v.ToxicityScore
		c.AIModerated = true
		c.AIToxicityScore = &score
		c.IsApproved = v.Approved()
	}

	reward := 0
	if c.IsApproved {
		reward = RewardApprovedComment
	}
	id, err := s.Comments.Create(ctx, &c, reward)
	if err != nil {
		return model.Comment{}, err
	}
	return s.Comments.GetByID(ctx, id)
}

func (s *CommentService) screen(ctx context.Context, content string) model.CommentVerdict {
	timeout := s.AITimeout
	if timeout <= 0 {
		timeout = defaultAITimeout
	}
	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	v, err := s.Advisor.ModerateComment(actx, content)
	if err != nil {
		logger(s.Log).Warn("comment screening failed; publishing unscreened", "kind", KindExternalServiceUnavailable, "err", err)
		return model.CommentVerdict{IsAppropriate: true, ToxicityScore: 0}
	}
	return v
}

// SetApproval publishes or hides a comment. Publishing pays the author the
// first time only.
func (s *CommentService) SetApproval(ctx context.Context, who Principal, id uint64, approved bool) (model.Comment, error) {
	if !who.isStaff() {
		return model.Comment{}, errf(KindForbidden, "only moderators can change comment approval")
	}
	var err error
	if approved {
		_, err = s.Comments.Approve(ctx, id, RewardApprovedComment)
	} else {
		err = s.Comments.Unapprove(ctx, id)
	}
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Comment{}, errf(KindNotFound, "comment %d not found", id)
		}
		return model.Comment{}, err
	}
	return s.Comments.GetByID(ctx, id)
}

// Delete removes a comment.
func (s *CommentService) Delete(ctx context.Context, who Principal, id uint64) error {
	if !who.isStaff() {
		return errf(KindForbidden, "only moderators can delete comments")
	}
	if err := s.Comments.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return errf(KindNotFound, "comment %d not found", id)
		}
		return err
	}
	return nil
}
