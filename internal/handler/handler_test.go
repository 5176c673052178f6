package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/outfit-wizard-api/internal/dto"
	"github.com/noah-isme/outfit-wizard-api/internal/middleware"
	"github.com/noah-isme/outfit-wizard-api/internal/models"
	"github.com/noah-isme/outfit-wizard-api/pkg/colour"
	appErrors "github.com/noah-isme/outfit-wizard-api/pkg/errors"
	"github.com/noah-isme/outfit-wizard-api/pkg/response"
	"github.com/noah-isme/outfit-wizard-api/pkg/storage"
)

var caller = models.UserContext{UserID: 1, Email: "alice@gmail.com", Role: models.RoleUser}

func newTestRouter(authenticated bool) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	if authenticated {
		router.Use(func(c *gin.Context) {
			c.Set(middleware.ContextUserKey, caller)
			c.Next()
		})
	}
	return router
}

func doJSON(router *gin.Engine, method, target string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeResult(t *testing.T, w *httptest.ResponseRecorder) response.Result {
	t.Helper()
	var envelope struct {
		Data response.Result `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	return envelope.Data
}

type wardrobeServiceStub struct {
	form     dto.AddItemForm
	data     []byte
	addErr   error
	bulk     *models.BulkDeleteStats
	similarN int
}

func (s *wardrobeServiceStub) ListItems(context.Context, models.UserContext) ([]models.ClothingItem, error) {
	return []models.ClothingItem{{ID: 1, Slot: models.SlotShirt}}, nil
}

func (s *wardrobeServiceStub) GetItem(_ context.Context, _ models.UserContext, id int64) (*models.ClothingItem, error) {
	if id != 1 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "item not found")
	}
	return &models.ClothingItem{ID: id}, nil
}

func (s *wardrobeServiceStub) AddItem(_ context.Context, _ models.UserContext, form dto.AddItemForm, data []byte) (*models.ClothingItem, error) {
	s.form = form
	s.data = data
	if s.addErr != nil {
		return nil, s.addErr
	}
	return &models.ClothingItem{ID: 9, Slot: models.Slot(form.Slot), Colour: colour.RGB{R: 255}}, nil
}

func (s *wardrobeServiceStub) EditItem(context.Context, models.UserContext, int64, dto.EditItemRequest) error {
	return nil
}

func (s *wardrobeServiceStub) UpdateItemDetails(context.Context, models.UserContext, int64, dto.DetailsRequest) error {
	return nil
}

func (s *wardrobeServiceStub) UpdateItemImage(_ context.Context, _ models.UserContext, id int64, data []byte) (*models.ClothingItem, error) {
	s.data = data
	return &models.ClothingItem{ID: id}, nil
}

func (s *wardrobeServiceStub) DeleteItem(context.Context, models.UserContext, int64) error {
	return nil
}

func (s *wardrobeServiceStub) BulkDelete(context.Context, models.UserContext, dto.BulkDeleteRequest) (*models.BulkDeleteStats, error) {
	return s.bulk, nil
}

func (s *wardrobeServiceStub) PriceHistory(context.Context, models.UserContext, int64) ([]models.PriceHistoryEntry, error) {
	return nil, nil
}

func (s *wardrobeServiceStub) ColourHistory(context.Context, models.UserContext, int64) ([]models.ColourHistoryEntry, error) {
	return nil, nil
}

func (s *wardrobeServiceStub) SimilarItems(_ context.Context, _ models.UserContext, _ int64, n int) ([]models.SimilarItem, error) {
	s.similarN = n
	return nil, nil
}

func multipartUpload(t *testing.T, fields map[string][]string, image []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for key, values := range fields {
		for _, v := range values {
			require.NoError(t, writer.WriteField(key, v))
		}
	}
	if image != nil {
		part, err := writer.CreateFormFile("image", "shirt.png")
		require.NoError(t, err)
		_, err = part.Write(image)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func itemRouter(svc *wardrobeServiceStub, maxBytes int64, authenticated bool) *gin.Engine {
	router := newTestRouter(authenticated)
	h := NewItemHandler(svc, maxBytes)
	router.POST("/items", h.Add)
	router.GET("/items/:id", h.Get)
	router.POST("/items/bulk-delete", h.BulkDelete)
	router.GET("/items/:id/similar", h.Similar)
	return router
}

func TestItemHandlerAddBindsMultipartForm(t *testing.T) {
	svc := &wardrobeServiceStub{}
	router := itemRouter(svc, 1024, true)
	body, contentType := multipartUpload(t, map[string][]string{
		"slot":    {"shirt"},
		"styles":  {"casual", "summer"},
		"genders": {"female"},
		"sizes":   {"M"},
		"price":   {"19.5"},
	}, []byte("png-bytes"))

	req := httptest.NewRequest(http.MethodPost, "/items", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "shirt", svc.form.Slot)
	assert.Equal(t, []string{"casual", "summer"}, svc.form.Styles)
	require.NotNil(t, svc.form.Price)
	assert.InDelta(t, 19.5, *svc.form.Price, 0.001)
	assert.Equal(t, []byte("png-bytes"), svc.data)
}

func TestItemHandlerAddRejectsMissingAndOversizedImages(t *testing.T) {
	svc := &wardrobeServiceStub{}
	router := itemRouter(svc, 4, true)

	body, contentType := multipartUpload(t, map[string][]string{"slot": {"shirt"}}, nil)
	req := httptest.NewRequest(http.MethodPost, "/items", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	body, contentType = multipartUpload(t, map[string][]string{"slot": {"shirt"}}, []byte("too large"))
	req = httptest.NewRequest(http.MethodPost, "/items", body)
	req.Header.Set("Content-Type", contentType)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Nil(t, svc.data)
}

func TestItemHandlerAddMapsDecodeErrors(t *testing.T) {
	svc := &wardrobeServiceStub{addErr: appErrors.Clone(appErrors.ErrImageDecode, "image could not be decoded")}
	router := itemRouter(svc, 1024, true)
	body, contentType := multipartUpload(t, map[string][]string{"slot": {"shirt"}}, []byte("not an image"))
	req := httptest.NewRequest(http.MethodPost, "/items", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestItemHandlerRequiresCaller(t *testing.T) {
	router := itemRouter(&wardrobeServiceStub{}, 1024, false)
	w := doJSON(router, http.MethodGet, "/items/1", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestItemHandlerGetValidatesID(t *testing.T) {
	router := itemRouter(&wardrobeServiceStub{}, 1024, true)
	assert.Equal(t, http.StatusBadRequest, doJSON(router, http.MethodGet, "/items/abc", nil).Code)
	assert.Equal(t, http.StatusNotFound, doJSON(router, http.MethodGet, "/items/2", nil).Code)
	assert.Equal(t, http.StatusOK, doJSON(router, http.MethodGet, "/items/1", nil).Code)
}

func TestItemHandlerBulkDeleteReportsPartialFailure(t *testing.T) {
	svc := &wardrobeServiceStub{bulk: &models.BulkDeleteStats{Deleted: 2, Failed: 1, Errors: []string{"item 2: item 2 not found"}}}
	router := itemRouter(svc, 1024, true)

	w := doJSON(router, http.MethodPost, "/items/bulk-delete", dto.BulkDeleteRequest{IDs: []int64{1, 2, 3}})
	require.Equal(t, http.StatusOK, w.Code)
	result := decodeResult(t, w)
	assert.False(t, result.Success)
	assert.Equal(t, "some items could not be deleted", result.Message)

	svc.bulk = &models.BulkDeleteStats{Deleted: 3, Errors: []string{}}
	result = decodeResult(t, doJSON(router, http.MethodPost, "/items/bulk-delete", dto.BulkDeleteRequest{IDs: []int64{1, 2, 3}}))
	assert.True(t, result.Success)
}

func TestItemHandlerSimilarParsesN(t *testing.T) {
	svc := &wardrobeServiceStub{}
	router := itemRouter(svc, 1024, true)

	require.Equal(t, http.StatusOK, doJSON(router, http.MethodGet, "/items/1/similar?n=5", nil).Code)
	assert.Equal(t, 5, svc.similarN)
	assert.Equal(t, http.StatusBadRequest, doJSON(router, http.MethodGet, "/items/1/similar?n=-1", nil).Code)
}

type outfitServiceStub struct {
	shareReq dto.ShareOutfitRequest
	unshared int64
	shareErr error
}

func (s *outfitServiceStub) SaveOutfit(_ context.Context, uc models.UserContext, req models.SaveOutfitRequest) (*models.SavedOutfit, error) {
	return &models.SavedOutfit{OutfitID: "abc", UserID: uc.UserID}, nil
}

func (s *outfitServiceStub) ListSavedOutfits(context.Context, models.UserContext) ([]models.SavedOutfit, error) {
	return []models.SavedOutfit{}, nil
}

func (s *outfitServiceStub) GetOutfit(_ context.Context, _ models.UserContext, id string) (*models.SavedOutfit, error) {
	return &models.SavedOutfit{OutfitID: id}, nil
}

func (s *outfitServiceStub) UpdateOutfitDetails(context.Context, models.UserContext, string, dto.DetailsRequest) error {
	return nil
}

func (s *outfitServiceStub) DeleteSavedOutfit(context.Context, models.UserContext, string) error {
	return nil
}

func (s *outfitServiceStub) ShareOutfit(_ context.Context, uc models.UserContext, id string, req dto.ShareOutfitRequest) (*models.SharedOutfit, error) {
	s.shareReq = req
	if s.shareErr != nil {
		return nil, s.shareErr
	}
	return &models.SharedOutfit{OutfitID: id, FromUser: uc.UserID, ToUser: req.ToUserID}, nil
}

func (s *outfitServiceStub) ListSharedOutfits(context.Context, models.UserContext) ([]models.SharedOutfit, error) {
	return nil, nil
}

func (s *outfitServiceStub) UnshareOutfit(_ context.Context, _ models.UserContext, _ string, toUser int64) error {
	s.unshared = toUser
	return nil
}

type composerStub struct {
	req models.ComposeRequest
}

func (s *composerStub) Compose(_ context.Context, _ models.UserContext, req models.ComposeRequest) (*models.ComposedOutfit, error) {
	s.req = req
	return &models.ComposedOutfit{MissingSlots: []models.Slot{models.SlotShoes}}, nil
}

func TestOutfitHandlerRoutes(t *testing.T) {
	outfits := &outfitServiceStub{}
	comp := &composerStub{}
	h := NewOutfitHandler(comp, outfits)
	router := newTestRouter(true)
	router.POST("/outfits/compose", h.Compose)
	router.POST("/outfits", h.Save)
	router.POST("/outfits/:id/share", h.Share)
	router.DELETE("/outfits/:id/share/:userId", h.Unshare)

	w := doJSON(router, http.MethodPost, "/outfits/compose", models.ComposeRequest{Size: "M", Style: "casual", Gender: "female"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "casual", comp.req.Style)
	assert.Contains(t, w.Body.String(), `"missing_slots":["shoes"]`)

	w = doJSON(router, http.MethodPost, "/outfits", models.SaveOutfitRequest{ShirtID: 1, PantsID: 2, ShoesID: 3})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.True(t, decodeResult(t, w).Success)

	w = doJSON(router, http.MethodPost, "/outfits/abc/share", dto.ShareOutfitRequest{ToEmail: "bob@gmail.com"})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "bob@gmail.com", outfits.shareReq.ToEmail)

	outfits.shareErr = appErrors.Clone(appErrors.ErrAlreadyExists, "outfit already shared with this user")
	w = doJSON(router, http.MethodPost, "/outfits/abc/share", dto.ShareOutfitRequest{ToUserID: 2})
	assert.Equal(t, http.StatusConflict, w.Code)

	assert.Equal(t, http.StatusBadRequest, doJSON(router, http.MethodDelete, "/outfits/abc/share/bob", nil).Code)
	require.Equal(t, http.StatusOK, doJSON(router, http.MethodDelete, "/outfits/abc/share/2", nil).Code)
	assert.Equal(t, int64(2), outfits.unshared)
}

type preferenceServiceStub struct {
	base colour.RGB
	n    int
}

func (s *preferenceServiceStub) Preferences(context.Context, models.UserContext) (*models.Preferences, error) {
	return &models.Preferences{}, nil
}

func (s *preferenceServiceStub) RecommendColours(_ context.Context, _ models.UserContext, base colour.RGB, n int) ([]models.ColourRecommendation, error) {
	s.base, s.n = base, n
	return []models.ColourRecommendation{}, nil
}

func TestPreferenceHandlerRecommend(t *testing.T) {
	svc := &preferenceServiceStub{}
	h := NewPreferenceHandler(svc)
	router := newTestRouter(true)
	router.GET("/colours/recommend", h.Recommend)

	require.Equal(t, http.StatusOK, doJSON(router, http.MethodGet, "/colours/recommend?base=255,0,0&n=5", nil).Code)
	assert.Equal(t, colour.RGB{R: 255}, svc.base)
	assert.Equal(t, 5, svc.n)

	assert.Equal(t, http.StatusBadRequest, doJSON(router, http.MethodGet, "/colours/recommend?base=red", nil).Code)
	assert.Equal(t, http.StatusBadRequest, doJSON(router, http.MethodGet, "/colours/recommend?base=1,2,3&n=0", nil).Code)
}

func TestImageHandlerServe(t *testing.T) {
	store, err := storage.NewLocalStorage(t.TempDir(), "user_images", "wardrobe")
	require.NoError(t, err)
	_, err = store.Save("wardrobe/user_1/outfit_a.png", []byte("png"))
	require.NoError(t, err)
	_, err = store.Save("user_images/shirt_a.png", []byte("shirt"))
	require.NoError(t, err)

	signer := storage.NewSignedURLSigner("secret", 0)
	h := NewImageHandler(signer, store, "wardrobe", "merged_outfits")
	router := newTestRouter(false)
	router.GET("/images/:token", h.Serve)

	token, _, err := signer.Generate(1, "wardrobe/user_1/outfit_a.png")
	require.NoError(t, err)
	w := doJSON(router, http.MethodGet, "/images/"+token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "png", w.Body.String())
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))

	token, _, _ = signer.Generate(1, "user_images/shirt_a.png")
	assert.Equal(t, http.StatusOK, doJSON(router, http.MethodGet, "/images/"+token, nil).Code)

	foreign, _, _ := signer.Generate(2, "wardrobe/user_1/outfit_a.png")
	assert.Equal(t, http.StatusForbidden, doJSON(router, http.MethodGet, "/images/"+foreign, nil).Code)

	missing, _, _ := signer.Generate(1, "wardrobe/user_1/gone.png")
	assert.Equal(t, http.StatusNotFound, doJSON(router, http.MethodGet, "/images/"+missing, nil).Code)

	assert.Equal(t, http.StatusForbidden, doJSON(router, http.MethodGet, "/images/garbage", nil).Code)
}

type exportServiceStub struct{}

func (exportServiceStub) ItemsCSV(context.Context, models.UserContext) ([]byte, error) {
	return []byte("id\n1\n"), nil
}

func (exportServiceStub) Lookbook(context.Context, models.UserContext) ([]byte, error) {
	return nil, errors.New("render failed")
}

func TestExportHandler(t *testing.T) {
	h := NewExportHandler(exportServiceStub{})
	router := newTestRouter(true)
	router.GET("/exports/items.csv", h.ItemsCSV)
	router.GET("/exports/lookbook.pdf", h.Lookbook)

	w := doJSON(router, http.MethodGet, "/exports/items.csv", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, w.Header().Get("Content-Disposition"), "wardrobe_")

	assert.Equal(t, http.StatusInternalServerError, doJSON(router, http.MethodGet, "/exports/lookbook.pdf", nil).Code)
}

type backupServiceStub struct {
	restored []models.BackupKind
	snapshot models.BackupRequest
	rotated  int
}

func (s *backupServiceStub) Snapshot(_ context.Context, req models.BackupRequest) ([]models.BackupEntry, error) {
	s.snapshot = req
	return []models.BackupEntry{{Kind: models.BackupDatabase}}, nil
}

func (s *backupServiceStub) Verify(kind models.BackupKind, path string) error {
	if path == "tampered.sql" {
		return appErrors.Clone(appErrors.ErrBackupIntegrity, "checksum mismatch")
	}
	return nil
}

func (s *backupServiceStub) RestoreDatabase(context.Context, string) error {
	s.restored = append(s.restored, models.BackupDatabase)
	return nil
}

func (s *backupServiceStub) RestoreFiles(context.Context, string) error {
	s.restored = append(s.restored, models.BackupFiles)
	return nil
}

func (s *backupServiceStub) Rotate(days int) (*models.RotateReport, error) {
	s.rotated = days
	return &models.RotateReport{DeletedFiles: []string{}}, nil
}

func (s *backupServiceStub) List() (models.BackupManifest, error) {
	return models.BackupManifest{}, nil
}

type maintenanceServiceStub struct {
	force bool
}

func (s *maintenanceServiceStub) RunCleanup(_ context.Context, force bool) (*models.CleanupReport, error) {
	s.force = force
	return &models.CleanupReport{Deleted: 2}, nil
}

func (s *maintenanceServiceStub) Statistics(context.Context) (*models.CleanupStats, error) {
	return &models.CleanupStats{TemporaryFiles: 3}, nil
}

func (s *maintenanceServiceStub) UpdateSettings(context.Context, models.CleanupSettingsPatch) (*models.CleanupSettings, error) {
	return &models.CleanupSettings{}, nil
}

type reconcilerStub struct{}

func (reconcilerStub) ReconcileOrphans(context.Context) (*models.ReconcileReport, error) {
	return &models.ReconcileReport{Orphaned: []int64{4}}, nil
}

func TestAdminHandlerBackups(t *testing.T) {
	backups := &backupServiceStub{}
	h := NewAdminHandler(&maintenanceServiceStub{}, backups, reconcilerStub{})
	router := newTestRouter(true)
	router.POST("/admin/backups", h.CreateBackup)
	router.POST("/admin/backups/verify", h.VerifyBackup)
	router.POST("/admin/backups/restore", h.RestoreBackup)
	router.POST("/admin/backups/rotate", h.RotateBackups)

	require.Equal(t, http.StatusCreated, doJSON(router, http.MethodPost, "/admin/backups", nil).Code)
	assert.Equal(t, models.BackupRequest{}, backups.snapshot)
	require.Equal(t, http.StatusCreated, doJSON(router, http.MethodPost, "/admin/backups", models.BackupRequest{Files: true}).Code)
	assert.True(t, backups.snapshot.Files)

	w := doJSON(router, http.MethodPost, "/admin/backups/verify", models.BackupFileRequest{Kind: models.BackupDatabase, FilePath: "tampered.sql"})
	assert.Equal(t, http.StatusConflict, w.Code)
	w = doJSON(router, http.MethodPost, "/admin/backups/verify", models.BackupFileRequest{Kind: models.BackupDatabase})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	require.Equal(t, http.StatusOK, doJSON(router, http.MethodPost, "/admin/backups/restore", models.BackupFileRequest{Kind: models.BackupFiles, FilePath: "f.zip"}).Code)
	require.Equal(t, http.StatusOK, doJSON(router, http.MethodPost, "/admin/backups/restore", models.BackupFileRequest{Kind: models.BackupDatabase, FilePath: "d.sql"}).Code)
	assert.Equal(t, []models.BackupKind{models.BackupFiles, models.BackupDatabase}, backups.restored)
	assert.Equal(t, http.StatusBadRequest, doJSON(router, http.MethodPost, "/admin/backups/restore", models.BackupFileRequest{Kind: "logs", FilePath: "x"}).Code)

	require.Equal(t, http.StatusOK, doJSON(router, http.MethodPost, "/admin/backups/rotate", models.RotateRequest{DaysToKeep: 7}).Code)
	assert.Equal(t, 7, backups.rotated)
}

func TestAdminHandlerCleanup(t *testing.T) {
	maintenance := &maintenanceServiceStub{}
	h := NewAdminHandler(maintenance, &backupServiceStub{}, reconcilerStub{})
	router := newTestRouter(true)
	router.GET("/admin/cleanup", h.CleanupStats)
	router.POST("/admin/cleanup/run", h.RunCleanup)
	router.POST("/admin/orphans/reconcile", h.ReconcileOrphans)

	assert.Contains(t, doJSON(router, http.MethodGet, "/admin/cleanup", nil).Body.String(), `"temporary_files":3`)

	require.Equal(t, http.StatusOK, doJSON(router, http.MethodPost, "/admin/cleanup/run", nil).Code)
	assert.True(t, maintenance.force)
	require.Equal(t, http.StatusOK, doJSON(router, http.MethodPost, "/admin/cleanup/run?force=false", nil).Code)
	assert.False(t, maintenance.force)
	assert.Equal(t, http.StatusBadRequest, doJSON(router, http.MethodPost, "/admin/cleanup/run?force=maybe", nil).Code)

	result := decodeResult(t, doJSON(router, http.MethodPost, "/admin/orphans/reconcile", nil))
	assert.True(t, result.Success)
}

type pingStub struct{ err error }

func (p pingStub) Ping(context.Context) error { return p.err }

func TestMetricsHandlerReady(t *testing.T) {
	router := newTestRouter(false)
	router.GET("/ready", NewMetricsHandler(nil, pingStub{}).Ready)
	router.GET("/down", NewMetricsHandler(nil, pingStub{err: errors.New("connection refused")}).Ready)
	router.GET("/metrics", NewMetricsHandler(nil, nil).Prometheus)

	assert.Equal(t, http.StatusOK, doJSON(router, http.MethodGet, "/ready", nil).Code)
	assert.Equal(t, http.StatusServiceUnavailable, doJSON(router, http.MethodGet, "/down", nil).Code)
	assert.Equal(t, http.StatusServiceUnavailable, doJSON(router, http.MethodGet, "/metrics", nil).Code)
}

func TestImageHandlerRejectsTraversal(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "secret.txt"), []byte("x"), 0o644))
	store, err := storage.NewLocalStorage(filepath.Join(root, "data"))
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("secret", 0)
	router := newTestRouter(false)
	router.GET("/images/:token", NewImageHandler(signer, store, "wardrobe").Serve)

	token, _, _ := signer.Generate(1, "../secret.txt")
	assert.Equal(t, http.StatusForbidden, doJSON(router, http.MethodGet, "/images/"+token, nil).Code)
}
