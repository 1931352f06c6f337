// Package seed loads a demo campus feed: a fixed cast from an embedded YAML
// file plus generated filler users and posts.
package seed

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"time"

	"campusfeed/internal/cache"
	"campusfeed/internal/events"
	"campusfeed/internal/middleware"
	"campusfeed/internal/models"
	"campusfeed/internal/repository"
	"campusfeed/internal/service"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

//go:embed fixtures.yaml
var fixturesYAML []byte

// Options control how much filler is generated.
type Options struct {
	FillerUsers     int
	PostsPerUser    int
	CommentsPerPost int
	// FastHash hashes passwords at bcrypt.MinCost.
	FastHash bool
	// Seed makes generated filler deterministic when non-zero.
	Seed        int64
	Concurrency int
}

// DefaultOptions is what `feedctl seed` uses without flags.
var DefaultOptions = Options{
	FillerUsers:     12,
	PostsPerUser:    3,
	CommentsPerPost: 4,
	Concurrency:     4,
}

// Summary reports what a run created.
type Summary struct {
	Users     int
	Posts     int
	Comments  int
	Reactions int
}

type fixtureFile struct {
	Password string        `yaml:"password"`
	Users    []fixtureUser `yaml:"users"`
	Posts    []fixturePost `yaml:"posts"`
}

type fixtureUser struct {
	Name  string `yaml:"name"`
	Email string `yaml:"email"`
}

type fixturePost struct {
	Author    string            `yaml:"author"`
	Title     string            `yaml:"title"`
	Category  string            `yaml:"category"`
	Content   string            `yaml:"content"`
	Reactions []fixtureReaction `yaml:"reactions"`
	Comments  []fixtureComment  `yaml:"comments"`
}

type fixtureReaction struct {
	User string `yaml:"user"`
	Kind string `yaml:"kind"`
}

type fixtureComment struct {
	Author  string           `yaml:"author"`
	Content string           `yaml:"content"`
	Replies []fixtureComment `yaml:"replies"`
}

// LoadFixtures parses the embedded fixture file.
func LoadFixtures() (*fixtureFile, error) {
	var f fixtureFile
	if err := yaml.Unmarshal(fixturesYAML, &f); err != nil {
		return nil, fmt.Errorf("parse fixtures: %w", err)
	}
	return &f, nil
}

// Seeder writes demo content through the same services the API uses, so
// comment paths and notifications come out exactly as they would live.
type Seeder struct {
	db        *gorm.DB
	opts      Options
	repos     service.Repositories
	posts     *service.PostService
	comments  *service.CommentService
	reactions *service.ReactionService
	faker     *gofakeit.Faker
	hash      string
}

// NewSeeder builds a Seeder over db.
func NewSeeder(db *gorm.DB, opts Options) *Seeder {
	repos := service.NewRepositories(db)
	tx := repository.NewTransactor(db)
	names := cache.NewNameCache(256, time.Hour)
	fanout := service.NewFanout(repos.Notifications, repos.Users, names, nil, nil)
	pub := events.NoopPublisher{}

	reactions := service.NewReactionService(tx, repos.Reactions, repos.Posts, repos.Comments, fanout, nil, nil, pub)
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Seeder{
		db:        db,
		opts:      opts,
		repos:     repos,
		posts:     service.NewPostService(tx, repos, reactions, nil, nil, pub),
		comments:  service.NewCommentService(tx, repos.Comments, repos.Posts, fanout, nil, pub),
		reactions: reactions,
		faker:     gofakeit.New(seed),
	}
}

// Run loads the fixtures and then the filler.
func (s *Seeder) Run(ctx context.Context) (*Summary, error) {
	fixtures, err := LoadFixtures()
	if err != nil {
		return nil, err
	}
	cost := bcrypt.DefaultCost
	if s.opts.FastHash {
		cost = bcrypt.MinCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(fixtures.Password), cost)
	if err != nil {
		return nil, fmt.Errorf("hash seed password: %w", err)
	}
	s.hash = string(hash)

	sum := &Summary{}
	byEmail := make(map[string]*models.User, len(fixtures.Users))
	for _, fu := range fixtures.Users {
		u, err := s.user(ctx, fu.Name, fu.Email)
		if err != nil {
			return nil, err
		}
		byEmail[u.Email] = u
		sum.Users++
	}

	for _, fp := range fixtures.Posts {
		if err := s.fixturePost(ctx, fp, byEmail, sum); err != nil {
			return nil, err
		}
	}

	if err := s.filler(ctx, sum); err != nil {
		return nil, err
	}

	middleware.Logger.InfoContext(ctx, "seed complete",
		slog.Int("users", sum.Users),
		slog.Int("posts", sum.Posts),
		slog.Int("comments", sum.Comments),
		slog.Int("reactions", sum.Reactions))
	return sum, nil
}

// user returns the existing user with email or creates one.
func (s *Seeder) user(ctx context.Context, name, email string) (*models.User, error) {
	existing, err := s.repos.Users.GetByEmail(ctx, email)
	if err == nil {
		return existing, nil
	}
	if models.ErrorCode(err) != models.CodeNotFound {
		return nil, err
	}
	u := &models.User{Name: name, Email: email, PasswordHash: s.hash, Verified: true}
	if err := s.repos.Users.Create(ctx, u); err != nil {
		return nil, fmt.Errorf("create user %s: %w", email, err)
	}
	return u, nil
}

func (s *Seeder) fixturePost(ctx context.Context, fp fixturePost, users map[string]*models.User, sum *Summary) error {
	author, ok := users[fp.Author]
	if !ok {
		return fmt.Errorf("fixture post %q: unknown author %s", fp.Title, fp.Author)
	}
	post, err := s.posts.CreatePost(ctx, service.CreatePostInput{
		UserID:   author.ID,
		Title:    fp.Title,
		Content:  fp.Content,
		Category: fp.Category,
	})
	if err != nil {
		return fmt.Errorf("fixture post %q: %w", fp.Title, err)
	}
	sum.Posts++

	for _, fr := range fp.Reactions {
		u, ok := users[fr.User]
		if !ok {
			return fmt.Errorf("fixture reaction on %q: unknown user %s", fp.Title, fr.User)
		}
		if _, err := s.reactions.AddReaction(ctx, service.ReactionInput{
			UserID: u.ID,
			Target: models.PostTarget(post.ID),
			Kind:   fr.Kind,
		}); err != nil {
			return err
		}
		sum.Reactions++
	}

	return s.fixtureComments(ctx, post.ID, nil, fp.Comments, users, sum)
}

func (s *Seeder) fixtureComments(ctx context.Context, postID uint, parentID *uint, items []fixtureComment, users map[string]*models.User, sum *Summary) error {
	for _, fc := range items {
		u, ok := users[fc.Author]
		if !ok {
			return fmt.Errorf("fixture comment: unknown author %s", fc.Author)
		}
		c, err := s.comments.CreateComment(ctx, service.CreateCommentInput{
			UserID:   u.ID,
			PostID:   postID,
			ParentID: parentID,
			Content:  fc.Content,
		})
		if err != nil {
			return err
		}
		sum.Comments++
		if err := s.fixtureComments(ctx, postID, &c.ID, fc.Replies, users, sum); err != nil {
			return err
		}
	}
	return nil
}
