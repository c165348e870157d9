package handlers

import (
	"net/http"
	"net/url"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Togather-Foundation/devconnector/internal/api/pagination"
	"github.com/Togather-Foundation/devconnector/internal/domain/ids"
	"github.com/Togather-Foundation/devconnector/internal/domain/posts"
)

func postsPage(limit int) posts.Pagination {
	return posts.Pagination{Limit: limit}
}

func createPost(t *testing.T, env *testEnv, token, text string) posts.Post {
	t.Helper()
	rec := env.do(http.MethodPost, "/api/posts", token, map[string]string{"text": text})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var p posts.Post
	decode(t, rec, &p)
	return p
}

func TestCreatePost(t *testing.T) {
	env := newTestEnv(t)
	token, userID := env.register("Jane", "jane@example.com")

	post := createPost(t, env, token, "<script>alert(1)</script>Hello <b>world</b>")
	require.Equal(t, userID, post.UserID)
	require.Equal(t, "Hello world", post.Text)
	require.Equal(t, "Jane", post.Name)
	require.NotEmpty(t, post.Avatar)
	require.NotNil(t, post.Likes)
	require.NotNil(t, post.Comments)
}

func TestCreatePost_Validation(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.register("Jane", "jane@example.com")

	requireProblem(t, env.do(http.MethodPost, "/api/posts", token, map[string]string{"text": "  "}), http.StatusBadRequest, "Text is required")
	requireProblem(t, env.do(http.MethodPost, "/api/posts", "", map[string]string{"text": "hi"}), http.StatusUnauthorized, "No token, authorization denied")
}

func TestListPosts_NewestFirstWithCursor(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.register("Jane", "jane@example.com")
	for _, text := range []string{"one", "two", "three"} {
		createPost(t, env, token, text)
	}

	rec := env.do(http.MethodGet, "/api/posts?limit=2", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var page []posts.Post
	decode(t, rec, &page)
	require.Len(t, page, 2)
	require.Equal(t, "three", page[0].Text)
	require.Equal(t, "two", page[1].Text)

	next := rec.Header().Get(pagination.NextCursorHeader)
	require.NotEmpty(t, next)

	rec = env.do(http.MethodGet, "/api/posts?limit=2&after="+url.QueryEscape(next), token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &page)
	require.Len(t, page, 1)
	require.Equal(t, "one", page[0].Text)
	require.Empty(t, rec.Header().Get(pagination.NextCursorHeader))

	rec = env.do(http.MethodGet, "/api/posts", token, nil)
	decode(t, rec, &page)
	require.Len(t, page, 3)
}

func TestListPosts_InvalidParams(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.register("Jane", "jane@example.com")

	requireProblem(t, env.do(http.MethodGet, "/api/posts?limit=0", token, nil), http.StatusBadRequest, "Limit must be between 1 and 200")
	requireProblem(t, env.do(http.MethodGet, "/api/posts?limit=201", token, nil), http.StatusBadRequest, "Limit must be between 1 and 200")
	requireProblem(t, env.do(http.MethodGet, "/api/posts?after=bogus", token, nil), http.StatusBadRequest, "Invalid cursor")
}

func TestListPosts_EmptyIsArray(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.register("Jane", "jane@example.com")

	rec := env.do(http.MethodGet, "/api/posts", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `[]`, rec.Body.String())
}

func TestGetPost(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.register("Jane", "jane@example.com")
	post := createPost(t, env, token, "hello")

	rec := env.do(http.MethodGet, "/api/posts/"+post.ID, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	for _, id := range []string{"malformed", ids.MustNewULID()} {
		requireProblem(t, env.do(http.MethodGet, "/api/posts/"+id, token, nil), http.StatusNotFound, "Post not found")
	}
}

func TestDeletePost_OnlyAuthor(t *testing.T) {
	env := newTestEnv(t)
	author, _ := env.register("Author", "author@example.com")
	other, _ := env.register("Other", "other@example.com")
	post := createPost(t, env, author, "mine")

	requireProblem(t, env.do(http.MethodDelete, "/api/posts/"+post.ID, other, nil), http.StatusUnauthorized, "User not authorized")
	require.Equal(t, http.StatusOK, env.do(http.MethodGet, "/api/posts/"+post.ID, author, nil).Code)

	rec := env.do(http.MethodDelete, "/api/posts/"+post.ID, author, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"msg":"Post removed"}`, rec.Body.String())

	requireProblem(t, env.do(http.MethodDelete, "/api/posts/"+post.ID, author, nil), http.StatusNotFound, "Post not found")
}

func TestLikeUnlike(t *testing.T) {
	env := newTestEnv(t)
	token, userID := env.register("Jane", "jane@example.com")
	post := createPost(t, env, token, "like me")

	rec := env.do(http.MethodPut, "/api/posts/like/"+post.ID, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var likes []posts.Like
	decode(t, rec, &likes)
	require.Len(t, likes, 1)
	require.Equal(t, userID, likes[0].UserID)

	requireProblem(t, env.do(http.MethodPut, "/api/posts/like/"+post.ID, token, nil), http.StatusBadRequest, "Post already liked")

	rec = env.do(http.MethodPut, "/api/posts/unlike/"+post.ID, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `[]`, rec.Body.String())

	requireProblem(t, env.do(http.MethodPut, "/api/posts/unlike/"+post.ID, token, nil), http.StatusBadRequest, "Post has not yet been liked")
	requireProblem(t, env.do(http.MethodPut, "/api/posts/like/"+ids.MustNewULID(), token, nil), http.StatusNotFound, "Post not found")
}

func TestLike_ConcurrentRequestsKeepOneLike(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.register("Jane", "jane@example.com")
	post := createPost(t, env, token, "race")

	const workers = 8
	codes := make([]int, workers)
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			codes[i] = env.do(http.MethodPut, "/api/posts/like/"+post.ID, token, nil).Code
		}()
	}
	wg.Wait()

	ok := 0
	for _, code := range codes {
		if code == http.StatusOK {
			ok++
		}
	}
	require.Equal(t, 1, ok)

	stored, err := env.store.Posts().Get(t.Context(), post.ID)
	require.NoError(t, err)
	require.Len(t, stored.Likes, 1)
}

func TestComments(t *testing.T) {
	env := newTestEnv(t)
	author, _ := env.register("Author", "author@example.com")
	other, otherID := env.register("Other", "other@example.com")
	post := createPost(t, env, author, "discuss")

	comment := func(token, text string) []posts.Comment {
		rec := env.do(http.MethodPost, "/api/posts/comment/"+post.ID, token, map[string]string{"text": text})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var out []posts.Comment
		decode(t, rec, &out)
		return out
	}
	comment(other, "first")
	comment(author, "second")
	comments := comment(other, "third")
	require.Len(t, comments, 3)
	require.Equal(t, "third", comments[0].Text, "newest first")
	require.Equal(t, "Other", comments[0].Name)
	require.Equal(t, otherID, comments[0].UserID)

	// The author of the post cannot delete someone else's comment.
	requireProblem(t, env.do(http.MethodDelete, "/api/posts/comment/"+post.ID+"/"+comments[2].ID, author, nil), http.StatusUnauthorized, "User not authorized")
	requireProblem(t, env.do(http.MethodDelete, "/api/posts/comment/"+post.ID+"/"+ids.MustNewULID(), other, nil), http.StatusNotFound, "Comment does not exist")

	// Deleting the older comment leaves the newer one by the same user.
	rec := env.do(http.MethodDelete, "/api/posts/comment/"+post.ID+"/"+comments[2].ID, other, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var remaining []posts.Comment
	decode(t, rec, &remaining)
	require.Len(t, remaining, 2)
	require.Equal(t, "third", remaining[0].Text)
	require.Equal(t, "second", remaining[1].Text)
}

func TestComment_Validation(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.register("Jane", "jane@example.com")
	post := createPost(t, env, token, "discuss")

	requireProblem(t, env.do(http.MethodPost, "/api/posts/comment/"+post.ID, token, map[string]string{}), http.StatusBadRequest, "Text is required")
	requireProblem(t, env.do(http.MethodPost, "/api/posts/comment/"+ids.MustNewULID(), token, map[string]string{"text": "hi"}), http.StatusNotFound, "Post not found")
}
