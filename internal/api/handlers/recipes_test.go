package handlers_test

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hugh/recipebox/internal/api/handlers"
	"github.com/hugh/recipebox/internal/api/middleware"
	"github.com/hugh/recipebox/internal/database/models"
	"github.com/hugh/recipebox/internal/storage"
	"github.com/hugh/recipebox/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRecipeTestRouter(t *testing.T) (*chi.Mux, *testutil.TestSetup, *storage.LocalStore) {
	tc := testutil.NewTestContext(t)

	store, err := storage.NewLocalStore(t.TempDir(), "/media")
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := handlers.NewRecipeHandler(tc.DB, store, logger)

	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(tc.AuthService))
		r.Route("/api/v1/recipe/recipes", func(r chi.Router) {
			r.Get("/", handler.List)
			r.Post("/", handler.Create)
			r.Get("/{id}", handler.Get)
			r.Put("/{id}", handler.Update)
			r.Patch("/{id}", handler.PartialUpdate)
			r.Delete("/{id}", handler.Delete)
			r.Post("/{id}/upload-image", handler.UploadImage)
		})
	})

	return r, tc, store
}

// backdate pushes a recipe's creation time into the past so ordering
// assertions do not depend on insert timing.
func backdate(t *testing.T, tc *testutil.TestSetup, recipe *models.Recipe, age time.Duration) {
	t.Helper()
	createdAt := time.Now().Add(-age)
	require.NoError(t, tc.DB.Model(recipe).Update("created_at", createdAt).Error)
}

func TestRecipeHandler_List(t *testing.T) {
	router, tc, _ := setupRecipeTestRouter(t)
	defer tc.Cleanup()

	t.Run("requires authentication", func(t *testing.T) {
		req := testutil.UnauthenticatedRequest(t, "GET", "/api/v1/recipe/recipes", nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("returns newest recipes first", func(t *testing.T) {
		older := testutil.CreateTestRecipe(t, tc.DB, tc.User.ID, "Old stew")
		backdate(t, tc, older, time.Hour)
		testutil.CreateTestRecipe(t, tc.DB, tc.User.ID, "Fresh salad")

		req := testutil.AuthenticatedRequest(t, "GET", "/api/v1/recipe/recipes", nil, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)

		var resp []handlers.RecipeResponse
		testutil.ParseJSONResponse(t, rr, &resp)
		require.Len(t, resp, 2)
		assert.Equal(t, "Fresh salad", resp[0].Title)
		assert.Equal(t, "Old stew", resp[1].Title)
	})

	t.Run("limited to the requesting user", func(t *testing.T) {
		other := testutil.CreateTestUser(t, tc.DB)
		testutil.CreateTestRecipe(t, tc.DB, other.ID, "Secret sauce")

		req := testutil.AuthenticatedRequest(t, "GET", "/api/v1/recipe/recipes", nil, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)

		var resp []handlers.RecipeResponse
		testutil.ParseJSONResponse(t, rr, &resp)
		for _, recipe := range resp {
			assert.NotEqual(t, "Secret sauce", recipe.Title)
		}
	})
}

func TestRecipeHandler_ListFilters(t *testing.T) {
	router, tc, _ := setupRecipeTestRouter(t)
	defer tc.Cleanup()

	vegan := testutil.CreateTestTag(t, tc.DB, tc.User.ID, "Vegan")
	dessert := testutil.CreateTestTag(t, tc.DB, tc.User.ID, "Dessert")
	tofu := testutil.CreateTestIngredient(t, tc.DB, tc.User.ID, "Tofu")

	curry := testutil.CreateTestRecipe(t, tc.DB, tc.User.ID, "Thai curry")
	testutil.AttachTags(t, tc.DB, curry, vegan)
	testutil.AttachIngredients(t, tc.DB, curry, tofu)

	cake := testutil.CreateTestRecipe(t, tc.DB, tc.User.ID, "Chocolate cake")
	testutil.AttachTags(t, tc.DB, cake, dessert)

	plain := testutil.CreateTestRecipe(t, tc.DB, tc.User.ID, "Plain rice")

	titles := func(rr *httptest.ResponseRecorder) []string {
		var resp []handlers.RecipeResponse
		testutil.ParseJSONResponse(t, rr, &resp)
		out := make([]string, len(resp))
		for i, r := range resp {
			out[i] = r.Title
		}
		return out
	}

	t.Run("filter by single tag", func(t *testing.T) {
		req := testutil.AuthenticatedRequest(t, "GET", "/api/v1/recipe/recipes?tags="+vegan.ID.String(), nil, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.ElementsMatch(t, []string{"Thai curry"}, titles(rr))
	})

	t.Run("tag list matches any of the given tags", func(t *testing.T) {
		param := vegan.ID.String() + "," + dessert.ID.String()
		req := testutil.AuthenticatedRequest(t, "GET", "/api/v1/recipe/recipes?tags="+param, nil, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.ElementsMatch(t, []string{"Thai curry", "Chocolate cake"}, titles(rr))
	})

	t.Run("tag and ingredient filters combine", func(t *testing.T) {
		param := "tags=" + vegan.ID.String() + "&ingredients=" + tofu.ID.String()
		req := testutil.AuthenticatedRequest(t, "GET", "/api/v1/recipe/recipes?"+param, nil, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.ElementsMatch(t, []string{"Thai curry"}, titles(rr))
	})

	t.Run("unfiltered list includes everything", func(t *testing.T) {
		req := testutil.AuthenticatedRequest(t, "GET", "/api/v1/recipe/recipes", nil, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.ElementsMatch(t, []string{"Thai curry", "Chocolate cake", plain.Title}, titles(rr))
	})

	t.Run("malformed tag id fails", func(t *testing.T) {
		req := testutil.AuthenticatedRequest(t, "GET", "/api/v1/recipe/recipes?tags=not-a-uuid", nil, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestRecipeHandler_Create(t *testing.T) {
	router, tc, _ := setupRecipeTestRouter(t)
	defer tc.Cleanup()

	t.Run("valid payload creates recipe", func(t *testing.T) {
		body := map[string]interface{}{
			"title":        "Avocado toast",
			"time_minutes": 5,
			"price":        3.50,
			"link":         "https://example.com/toast",
		}
		req := testutil.AuthenticatedRequest(t, "POST", "/api/v1/recipe/recipes", body, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusCreated, rr.Code)

		var resp handlers.RecipeDetailResponse
		testutil.ParseJSONResponse(t, rr, &resp)
		assert.Equal(t, "Avocado toast", resp.Title)
		assert.Equal(t, 5, resp.TimeMinutes)
		assert.Equal(t, 3.50, resp.Price)
		assert.Equal(t, "https://example.com/toast", resp.Link)
	})

	t.Run("creates recipe with tags and ingredients", func(t *testing.T) {
		tag := testutil.CreateTestTag(t, tc.DB, tc.User.ID, "Quick")
		ingredient := testutil.CreateTestIngredient(t, tc.DB, tc.User.ID, "Eggs")

		body := map[string]interface{}{
			"title":        "Omelette",
			"time_minutes": 10,
			"price":        2.00,
			"tags":         []string{tag.ID.String()},
			"ingredients":  []string{ingredient.ID.String()},
		}
		req := testutil.AuthenticatedRequest(t, "POST", "/api/v1/recipe/recipes", body, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusCreated, rr.Code)

		var resp handlers.RecipeDetailResponse
		testutil.ParseJSONResponse(t, rr, &resp)
		require.Len(t, resp.Tags, 1)
		assert.Equal(t, "Quick", resp.Tags[0].Name)
		require.Len(t, resp.Ingredients, 1)
		assert.Equal(t, "Eggs", resp.Ingredients[0].Name)
	})

	t.Run("rejects another user's tag", func(t *testing.T) {
		other := testutil.CreateTestUser(t, tc.DB)
		foreign := testutil.CreateTestTag(t, tc.DB, other.ID, "Theirs")

		body := map[string]interface{}{
			"title":        "Sneaky",
			"time_minutes": 10,
			"price":        2.00,
			"tags":         []string{foreign.ID.String()},
		}
		req := testutil.AuthenticatedRequest(t, "POST", "/api/v1/recipe/recipes", body, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("missing required fields fail", func(t *testing.T) {
		body := map[string]interface{}{"title": "Incomplete"}
		req := testutil.AuthenticatedRequest(t, "POST", "/api/v1/recipe/recipes", body, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("negative price fails", func(t *testing.T) {
		body := map[string]interface{}{
			"title":        "Freebie",
			"time_minutes": 5,
			"price":        -1.00,
		}
		req := testutil.AuthenticatedRequest(t, "POST", "/api/v1/recipe/recipes", body, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestRecipeHandler_Get(t *testing.T) {
	router, tc, _ := setupRecipeTestRouter(t)
	defer tc.Cleanup()

	recipe := testutil.CreateTestRecipe(t, tc.DB, tc.User.ID, "Lasagne")
	tag := testutil.CreateTestTag(t, tc.DB, tc.User.ID, "Comfort")
	testutil.AttachTags(t, tc.DB, recipe, tag)

	t.Run("detail nests tags and ingredients", func(t *testing.T) {
		req := testutil.AuthenticatedRequest(t, "GET", "/api/v1/recipe/recipes/"+recipe.ID.String(), nil, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)

		var resp handlers.RecipeDetailResponse
		testutil.ParseJSONResponse(t, rr, &resp)
		assert.Equal(t, "Lasagne", resp.Title)
		require.Len(t, resp.Tags, 1)
		assert.Equal(t, "Comfort", resp.Tags[0].Name)
		assert.Empty(t, resp.Ingredients)
		assert.Nil(t, resp.Image)
	})

	t.Run("other user's recipe is not found", func(t *testing.T) {
		other := testutil.CreateTestUser(t, tc.DB)
		foreign := testutil.CreateTestRecipe(t, tc.DB, other.ID, "Hidden")

		req := testutil.AuthenticatedRequest(t, "GET", "/api/v1/recipe/recipes/"+foreign.ID.String(), nil, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestRecipeHandler_Update(t *testing.T) {
	router, tc, _ := setupRecipeTestRouter(t)
	defer tc.Cleanup()

	t.Run("patch changes only the given fields", func(t *testing.T) {
		recipe := testutil.CreateTestRecipe(t, tc.DB, tc.User.ID, "Original title")
		tag := testutil.CreateTestTag(t, tc.DB, tc.User.ID, "Keeper")
		testutil.AttachTags(t, tc.DB, recipe, tag)

		body := map[string]interface{}{"title": "Patched title"}
		req := testutil.AuthenticatedRequest(t, "PATCH", "/api/v1/recipe/recipes/"+recipe.ID.String(), body, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)

		var resp handlers.RecipeDetailResponse
		testutil.ParseJSONResponse(t, rr, &resp)
		assert.Equal(t, "Patched title", resp.Title)
		assert.Equal(t, recipe.TimeMinutes, resp.TimeMinutes)
		assert.Equal(t, recipe.Price, resp.Price)
		// Tags untouched by a partial update that omits them.
		require.Len(t, resp.Tags, 1)
		assert.Equal(t, "Keeper", resp.Tags[0].Name)
	})

	t.Run("patch can swap tags", func(t *testing.T) {
		recipe := testutil.CreateTestRecipe(t, tc.DB, tc.User.ID, "Swap tags")
		old := testutil.CreateTestTag(t, tc.DB, tc.User.ID, "Old")
		testutil.AttachTags(t, tc.DB, recipe, old)
		replacement := testutil.CreateTestTag(t, tc.DB, tc.User.ID, "New")

		body := map[string]interface{}{"tags": []string{replacement.ID.String()}}
		req := testutil.AuthenticatedRequest(t, "PATCH", "/api/v1/recipe/recipes/"+recipe.ID.String(), body, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)

		var resp handlers.RecipeDetailResponse
		testutil.ParseJSONResponse(t, rr, &resp)
		require.Len(t, resp.Tags, 1)
		assert.Equal(t, "New", resp.Tags[0].Name)
	})

	t.Run("patch with empty tag list clears tags", func(t *testing.T) {
		recipe := testutil.CreateTestRecipe(t, tc.DB, tc.User.ID, "Clear tags")
		tag := testutil.CreateTestTag(t, tc.DB, tc.User.ID, "Doomed tag")
		testutil.AttachTags(t, tc.DB, recipe, tag)

		body := map[string]interface{}{"tags": []string{}}
		req := testutil.AuthenticatedRequest(t, "PATCH", "/api/v1/recipe/recipes/"+recipe.ID.String(), body, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)

		var resp handlers.RecipeDetailResponse
		testutil.ParseJSONResponse(t, rr, &resp)
		assert.Empty(t, resp.Tags)
	})

	t.Run("put without tags clears them", func(t *testing.T) {
		recipe := testutil.CreateTestRecipe(t, tc.DB, tc.User.ID, "Full update")
		tag := testutil.CreateTestTag(t, tc.DB, tc.User.ID, "Gone after put")
		testutil.AttachTags(t, tc.DB, recipe, tag)

		body := map[string]interface{}{
			"title":        "Replaced",
			"time_minutes": 25,
			"price":        7.25,
		}
		req := testutil.AuthenticatedRequest(t, "PUT", "/api/v1/recipe/recipes/"+recipe.ID.String(), body, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)

		var resp handlers.RecipeDetailResponse
		testutil.ParseJSONResponse(t, rr, &resp)
		assert.Equal(t, "Replaced", resp.Title)
		assert.Equal(t, 25, resp.TimeMinutes)
		assert.Empty(t, resp.Tags)
	})

	t.Run("put without link resets it", func(t *testing.T) {
		recipe := testutil.CreateTestRecipe(t, tc.DB, tc.User.ID, "Linked")
		require.NoError(t, tc.DB.Model(recipe).Update("link", "https://example.com/old").Error)

		body := map[string]interface{}{
			"title":        "Linked",
			"time_minutes": 10,
			"price":        5.00,
		}
		req := testutil.AuthenticatedRequest(t, "PUT", "/api/v1/recipe/recipes/"+recipe.ID.String(), body, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)

		var stored models.Recipe
		require.NoError(t, tc.DB.First(&stored, recipe.ID).Error)
		assert.Empty(t, stored.Link)
	})
}

func TestRecipeHandler_Delete(t *testing.T) {
	router, tc, store := setupRecipeTestRouter(t)
	defer tc.Cleanup()

	t.Run("removes recipe and associations", func(t *testing.T) {
		recipe := testutil.CreateTestRecipe(t, tc.DB, tc.User.ID, "Goner")
		tag := testutil.CreateTestTag(t, tc.DB, tc.User.ID, "Survivor")
		testutil.AttachTags(t, tc.DB, recipe, tag)

		req := testutil.AuthenticatedRequest(t, "DELETE", "/api/v1/recipe/recipes/"+recipe.ID.String(), nil, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusNoContent, rr.Code)

		var count int64
		tc.DB.Model(&models.Recipe{}).Where("id = ?", recipe.ID).Count(&count)
		assert.Equal(t, int64(0), count)

		// The tag itself survives.
		tc.DB.Model(&models.Tag{}).Where("id = ?", tag.ID).Count(&count)
		assert.Equal(t, int64(1), count)
	})

	t.Run("removes the stored image file", func(t *testing.T) {
		recipe := testutil.CreateTestRecipe(t, tc.DB, tc.User.ID, "Pictured")

		key := "recipes/" + recipe.ID.String() + "/test.png"
		require.NoError(t, store.Save(context.Background(), key, bytes.NewReader([]byte("fake"))))
		require.NoError(t, tc.DB.Model(recipe).Update("image_key", key).Error)

		req := testutil.AuthenticatedRequest(t, "DELETE", "/api/v1/recipe/recipes/"+recipe.ID.String(), nil, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusNoContent, rr.Code)

		_, err := os.Stat(filepath.Join(store.Dir(), filepath.FromSlash(key)))
		assert.True(t, os.IsNotExist(err))
	})
}

// multipartImageRequest builds a multipart upload with the given bytes
// as the image field.
func multipartImageRequest(t *testing.T, path, token, filename string, content []byte) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("image", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest("POST", path, &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func pngBytes(t *testing.T) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 10, 10))
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestRecipeHandler_UploadImage(t *testing.T) {
	router, tc, store := setupRecipeTestRouter(t)
	defer tc.Cleanup()

	t.Run("valid png is stored", func(t *testing.T) {
		recipe := testutil.CreateTestRecipe(t, tc.DB, tc.User.ID, "Photogenic")

		req := multipartImageRequest(t,
			"/api/v1/recipe/recipes/"+recipe.ID.String()+"/upload-image",
			tc.Token, "photo.png", pngBytes(t))
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)

		var resp handlers.RecipeDetailResponse
		testutil.ParseJSONResponse(t, rr, &resp)
		require.NotNil(t, resp.Image)
		assert.Contains(t, *resp.Image, "/media/recipes/"+recipe.ID.String()+"/")

		var stored models.Recipe
		require.NoError(t, tc.DB.First(&stored, recipe.ID).Error)
		require.NotEmpty(t, stored.ImageKey)

		_, err := os.Stat(filepath.Join(store.Dir(), filepath.FromSlash(stored.ImageKey)))
		assert.NoError(t, err)
	})

	t.Run("re-upload replaces the previous file", func(t *testing.T) {
		recipe := testutil.CreateTestRecipe(t, tc.DB, tc.User.ID, "Twice pictured")
		path := "/api/v1/recipe/recipes/" + recipe.ID.String() + "/upload-image"

		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, multipartImageRequest(t, path, tc.Token, "first.png", pngBytes(t)))
		require.Equal(t, http.StatusOK, rr.Code)

		var stored models.Recipe
		require.NoError(t, tc.DB.First(&stored, recipe.ID).Error)
		firstKey := stored.ImageKey

		rr = httptest.NewRecorder()
		router.ServeHTTP(rr, multipartImageRequest(t, path, tc.Token, "second.png", pngBytes(t)))
		require.Equal(t, http.StatusOK, rr.Code)

		require.NoError(t, tc.DB.First(&stored, recipe.ID).Error)
		assert.NotEqual(t, firstKey, stored.ImageKey)

		_, err := os.Stat(filepath.Join(store.Dir(), filepath.FromSlash(firstKey)))
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("non-image payload fails", func(t *testing.T) {
		recipe := testutil.CreateTestRecipe(t, tc.DB, tc.User.ID, "Not a photo")

		req := multipartImageRequest(t,
			"/api/v1/recipe/recipes/"+recipe.ID.String()+"/upload-image",
			tc.Token, "notimage.txt", []byte("notanimage"))
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)

		var stored models.Recipe
		require.NoError(t, tc.DB.First(&stored, recipe.ID).Error)
		assert.Empty(t, stored.ImageKey)
	})

	t.Run("missing image field fails", func(t *testing.T) {
		recipe := testutil.CreateTestRecipe(t, tc.DB, tc.User.ID, "Empty form")

		var buf bytes.Buffer
		writer := multipart.NewWriter(&buf)
		require.NoError(t, writer.Close())

		req := httptest.NewRequest("POST", "/api/v1/recipe/recipes/"+recipe.ID.String()+"/upload-image", &buf)
		req.Header.Set("Content-Type", writer.FormDataContentType())
		req.Header.Set("Authorization", "Bearer "+tc.Token)

		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}
