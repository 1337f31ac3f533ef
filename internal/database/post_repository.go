// internal/database/post_repository.go
package database

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"memories/internal/models"
	"memories/internal/utils"
)

// PostDocument represents the MongoDB schema for a post.
type PostDocument struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	Title        string             `bson:"title"`
	Message      string             `bson:"message"`
	Creator      string             `bson:"creator"`
	Tags         []string           `bson:"tags"`
	SelectedFile string             `bson:"selectedFile"`
	Likes        []string           `bson:"likes"`
	Comments     []string           `bson:"comments"`
	CreatedAt    time.Time          `bson:"createdAt"`
}

// ModelToDocument converts a Post model to a MongoDB document.
func ModelToDocument(post *models.Post) (*PostDocument, error) {
	doc := &PostDocument{
		Title:        post.Title,
		Message:      post.Message,
		Creator:      post.Creator,
		Tags:         post.Tags,
		SelectedFile: post.SelectedFile,
		Likes:        post.Likes,
		Comments:     post.Comments,
		CreatedAt:    post.CreatedAt,
	}
	if post.ID != "" {
		id, err := primitive.ObjectIDFromHex(post.ID)
		if err != nil {
			return nil, utils.NewAppError(utils.ErrInvalidInput, "invalid post ID", err)
		}
		doc.ID = id
	}
	return doc, nil
}

// DocumentToModel converts a MongoDB document to a Post model.
func DocumentToModel(doc *PostDocument) *models.Post {
	post := &models.Post{
		ID:           doc.ID.Hex(),
		Title:        doc.Title,
		Message:      doc.Message,
		Creator:      doc.Creator,
		Tags:         doc.Tags,
		SelectedFile: doc.SelectedFile,
		Likes:        doc.Likes,
		Comments:     doc.Comments,
		CreatedAt:    doc.CreatedAt,
	}
	return post.Normalize()
}

func objectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, utils.NewPostNotFoundError(id)
	}
	return oid, nil
}

// CountPosts returns the number of stored posts.
func (m *MongoDB) CountPosts(ctx context.Context) (int64, error) {
	defer m.observe("count_posts", time.Now())
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	n, err := m.Posts.CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, utils.NewDatabaseError("failed to count posts", err)
	}
	return n, nil
}

// ListPosts returns up to limit posts, most recent first, skipping offset.
func (m *MongoDB) ListPosts(ctx context.Context, offset, limit int) ([]*models.Post, error) {
	defer m.observe("list_posts", time.Now())
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "_id", Value: -1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	cursor, err := m.Posts.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, utils.NewDatabaseError("failed to list posts", err)
	}
	return decodePosts(ctx, cursor)
}

// SearchPosts matches posts whose title contains query (case-insensitive,
// literal) or whose tags intersect tags.
func (m *MongoDB) SearchPosts(ctx context.Context, query string, tags []string) ([]*models.Post, error) {
	defer m.observe("search_posts", time.Now())
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	cursor, err := m.Posts.Find(ctx, searchFilter(query, tags))
	if err != nil {
		return nil, utils.NewDatabaseError("failed to search posts", err)
	}
	return decodePosts(ctx, cursor)
}

func searchFilter(query string, tags []string) bson.D {
	if tags == nil {
		tags = []string{}
	}
	return bson.D{{Key: "$or", Value: bson.A{
		bson.D{{Key: "title", Value: primitive.Regex{Pattern: regexp.QuoteMeta(query), Options: "i"}}},
		bson.D{{Key: "tags", Value: bson.D{{Key: "$in", Value: tags}}}},
	}}}
}

// GetPost retrieves a post by its ID.
func (m *MongoDB) GetPost(ctx context.Context, id string) (*models.Post, error) {
	defer m.observe("get_post", time.Now())
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}

	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	var doc PostDocument
	err = m.Posts.FindOne(ctx, bson.D{{Key: "_id", Value: oid}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, utils.NewPostNotFoundError(id)
	}
	if err != nil {
		return nil, utils.NewDatabaseError("failed to get post", err)
	}
	return DocumentToModel(&doc), nil
}

// CreatePost inserts post and sets its generated ID.
func (m *MongoDB) CreatePost(ctx context.Context, post *models.Post) error {
	defer m.observe("create_post", time.Now())
	post.Normalize()
	doc, err := ModelToDocument(post)
	if err != nil {
		return err
	}
	if doc.ID.IsZero() {
		doc.ID = primitive.NewObjectID()
	}

	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	if _, err := m.Posts.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return utils.NewAppError(utils.ErrDuplicate, "post already exists", err)
		}
		return utils.NewDatabaseError("failed to create post", err)
	}
	post.ID = doc.ID.Hex()
	return nil
}

// UpdatePost overwrites the fields set on update. It reports whether a
// document matched id.
func (m *MongoDB) UpdatePost(ctx context.Context, id string, update models.PostUpdate) (bool, error) {
	defer m.observe("update_post", time.Now())
	oid, err := objectID(id)
	if err != nil {
		return false, err
	}

	set := updateFields(update)
	if len(set) == 0 {
		return true, nil
	}

	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	result, err := m.Posts.UpdateByID(ctx, oid, bson.D{{Key: "$set", Value: set}})
	if err != nil {
		return false, utils.NewDatabaseError("failed to update post", err)
	}
	return result.MatchedCount > 0, nil
}

func updateFields(update models.PostUpdate) bson.D {
	set := bson.D{}
	if update.Creator != nil {
		set = append(set, bson.E{Key: "creator", Value: *update.Creator})
	}
	if update.Title != nil {
		set = append(set, bson.E{Key: "title", Value: *update.Title})
	}
	if update.Message != nil {
		set = append(set, bson.E{Key: "message", Value: *update.Message})
	}
	if update.Tags != nil {
		set = append(set, bson.E{Key: "tags", Value: *update.Tags})
	}
	if update.SelectedFile != nil {
		set = append(set, bson.E{Key: "selectedFile", Value: *update.SelectedFile})
	}
	return set
}

// DeletePost removes the post if it exists; a missing post is not an error.
func (m *MongoDB) DeletePost(ctx context.Context, id string) error {
	defer m.observe("delete_post", time.Now())
	oid, err := objectID(id)
	if err != nil {
		return err
	}

	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	result, err := m.Posts.DeleteOne(ctx, bson.D{{Key: "_id", Value: oid}})
	if err != nil {
		return utils.NewDatabaseError("failed to delete post", err)
	}
	if result.DeletedCount == 0 {
		slog.Debug("delete matched no post", "id", id)
	}
	return nil
}

// ToggleLike adds or removes userID from the post's likes in a single
// pipeline update, so concurrent toggles on one post cannot lose writes.
func (m *MongoDB) ToggleLike(ctx context.Context, id, userID string) (*models.Post, error) {
	defer m.observe("toggle_like", time.Now())
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	return m.findAndModify(ctx, id, oid, toggleLikePipeline(userID))
}

func toggleLikePipeline(userID string) mongo.Pipeline {
	user := bson.D{{Key: "$literal", Value: userID}}
	likes := bson.D{{Key: "$ifNull", Value: bson.A{"$likes", bson.A{}}}}

	return mongo.Pipeline{
		{{Key: "$set", Value: bson.D{{Key: "likes", Value: bson.D{{Key: "$cond", Value: bson.D{
			{Key: "if", Value: bson.D{{Key: "$in", Value: bson.A{user, likes}}}},
			{Key: "then", Value: bson.D{{Key: "$filter", Value: bson.D{
				{Key: "input", Value: likes},
				{Key: "as", Value: "id"},
				{Key: "cond", Value: bson.D{{Key: "$ne", Value: bson.A{"$$id", user}}}},
			}}}},
			{Key: "else", Value: bson.D{{Key: "$concatArrays", Value: bson.A{likes, bson.A{user}}}}},
		}}}}}}},
	}
}

// AddComment appends value to the post's comments with $push.
func (m *MongoDB) AddComment(ctx context.Context, id, value string) (*models.Post, error) {
	defer m.observe("add_comment", time.Now())
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	return m.findAndModify(ctx, id, oid, bson.D{{Key: "$push", Value: bson.D{{Key: "comments", Value: value}}}})
}

func (m *MongoDB) findAndModify(ctx context.Context, id string, oid primitive.ObjectID, update interface{}) (*models.Post, error) {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc PostDocument
	err := m.Posts.FindOneAndUpdate(ctx, bson.D{{Key: "_id", Value: oid}}, update, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, utils.NewPostNotFoundError(id)
	}
	if err != nil {
		return nil, utils.NewDatabaseError("failed to update post", err)
	}
	return DocumentToModel(&doc), nil
}

func decodePosts(ctx context.Context, cursor *mongo.Cursor) ([]*models.Post, error) {
	defer cursor.Close(ctx)

	posts := make([]*models.Post, 0)
	for cursor.Next(ctx) {
		var doc PostDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, utils.NewDatabaseError("failed to decode post", err)
		}
		posts = append(posts, DocumentToModel(&doc))
	}

	if err := cursor.Err(); err != nil {
		return nil, utils.NewDatabaseError("cursor iteration failed", err)
	}
	return posts, nil
}
