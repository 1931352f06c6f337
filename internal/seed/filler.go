package seed

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"campusfeed/internal/models"
	"campusfeed/internal/service"

	"golang.org/x/sync/errgroup"
)

// fillerPost is generated up front so the faker, which is not safe for
// concurrent use, stays on one goroutine.
type fillerPost struct {
	authorIdx int
	title     string
	category  string
	content   string
	comments  []fillerComment
}

type fillerComment struct {
	authorIdx int
	// replyTo indexes an earlier comment of the same post, or -1.
	replyTo int
	content string
	kind    string
}

func (s *Seeder) filler(ctx context.Context, sum *Summary) error {
	if s.opts.FillerUsers <= 0 {
		return nil
	}

	users := make([]*models.User, 0, s.opts.FillerUsers)
	for i := 0; i < s.opts.FillerUsers; i++ {
		name := s.faker.Name()
		email := fmt.Sprintf("%s.%d@campus.test", strings.ToLower(s.faker.Username()), i)
		u, err := s.user(ctx, name, email)
		if err != nil {
			return err
		}
		users = append(users, u)
	}
	sum.Users += len(users)

	plan := s.planFiller(len(users))

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)
	for _, fp := range plan {
		g.Go(func() error {
			comments, reactions, err := s.writeFiller(gctx, users, fp)
			if err != nil {
				return err
			}
			mu.Lock()
			sum.Posts++
			sum.Comments += comments
			sum.Reactions += reactions
			mu.Unlock()
			return nil
		})
	}
	return g.Wait()
}

func (s *Seeder) planFiller(numUsers int) []fillerPost {
	plan := make([]fillerPost, 0, numUsers*s.opts.PostsPerUser)
	for u := 0; u < numUsers; u++ {
		for p := 0; p < s.opts.PostsPerUser; p++ {
			fp := fillerPost{
				authorIdx: u,
				title:     strings.TrimSuffix(s.faker.Sentence(6), "."),
				category:  models.Categories[s.faker.Number(0, len(models.Categories)-1)],
				content:   s.faker.Paragraph(2, 3, 12, "\n\n"),
			}
			for c := 0; c < s.opts.CommentsPerPost; c++ {
				replyTo := -1
				if c > 0 && s.faker.Bool() {
					replyTo = s.faker.Number(0, c-1)
				}
				kind := string(models.ReactionKinds[s.faker.Number(0, len(models.ReactionKinds)-1)])
				fp.comments = append(fp.comments, fillerComment{
					authorIdx: s.faker.Number(0, numUsers-1),
					replyTo:   replyTo,
					content:   s.faker.Sentence(s.faker.Number(4, 16)),
					kind:      kind,
				})
			}
			plan = append(plan, fp)
		}
	}
	return plan
}

// writeFiller creates one post with its comments. Every commenter also
// reacts to the post once.
func (s *Seeder) writeFiller(ctx context.Context, users []*models.User, fp fillerPost) (int, int, error) {
	post, err := s.posts.CreatePost(ctx, service.CreatePostInput{
		UserID:   users[fp.authorIdx].ID,
		Title:    fp.title,
		Content:  fp.content,
		Category: fp.category,
	})
	if err != nil {
		return 0, 0, err
	}

	created := make([]*models.Comment, 0, len(fp.comments))
	reactions := 0
	for _, fc := range fp.comments {
		in := service.CreateCommentInput{
			UserID:  users[fc.authorIdx].ID,
			PostID:  post.ID,
			Content: fc.content,
		}
		if fc.replyTo >= 0 {
			in.ParentID = &created[fc.replyTo].ID
		}
		c, err := s.comments.CreateComment(ctx, in)
		if err != nil {
			return 0, 0, err
		}
		created = append(created, c)

		res, err := s.reactions.AddReaction(ctx, service.ReactionInput{
			UserID: in.UserID,
			Target: models.PostTarget(post.ID),
			Kind:   fc.kind,
		})
		if err != nil {
			return 0, 0, err
		}
		if res.Applied {
			reactions++
		}
	}
	return len(created), reactions, nil
}
