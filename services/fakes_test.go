package services

import (
	"bytes"
	"context"
	"errors"
	"sort"
	"time"

	"mnas/models"
	"mnas/repositories"

	"gorm.io/gorm"
)

type fakeTxManager struct{}

func (fakeTxManager) WithTransaction(_ context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type failingTxManager struct{}

func (failingTxManager) WithTransaction(context.Context, func(tx *gorm.DB) error) error {
	return errors.New("事务提交失败")
}

type fakeUserRepo struct {
	countByUsername  map[string]int64
	usersByID        map[uint]models.User
	usersByName      map[string]models.User
	nextID           uint
	addStorageDeltas []int64
	subStorageDeltas []int64
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		countByUsername: map[string]int64{},
		usersByID:       map[uint]models.User{},
		usersByName:     map[string]models.User{},
		nextID:          1,
	}
}

func (r *fakeUserRepo) CountByUsername(_ context.Context, username string) (int64, error) {
	if c, ok := r.countByUsername[username]; ok {
		return c, nil
	}
	if _, ok := r.usersByName[username]; ok {
		return 1, nil
	}
	return 0, nil
}

func (r *fakeUserRepo) Create(_ context.Context, _ *gorm.DB, user *models.User) error {
	if user.ID == 0 {
		user.ID = r.nextID
		r.nextID++
	}
	r.usersByID[user.ID] = *user
	r.usersByName[user.Username] = *user
	return nil
}

func (r *fakeUserRepo) GetByUsername(_ context.Context, _ *gorm.DB, username string) (models.User, error) {
	user, ok := r.usersByName[username]
	if !ok {
		return models.User{}, gorm.ErrRecordNotFound
	}
	return user, nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, _ *gorm.DB, userID uint) (models.User, error) {
	user, ok := r.usersByID[userID]
	if !ok {
		return models.User{}, gorm.ErrRecordNotFound
	}
	return user, nil
}

func (r *fakeUserRepo) AddStorageUsed(_ context.Context, _ *gorm.DB, userID uint, delta int64) error {
	user, ok := r.usersByID[userID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	user.StorageUsed += delta
	r.usersByID[userID] = user
	r.addStorageDeltas = append(r.addStorageDeltas, delta)
	return nil
}

func (r *fakeUserRepo) SubStorageUsed(_ context.Context, _ *gorm.DB, userID uint, delta int64) error {
	user, ok := r.usersByID[userID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	user.StorageUsed -= delta
	if user.StorageUsed < 0 {
		user.StorageUsed = 0
	}
	r.usersByID[userID] = user
	r.subStorageDeltas = append(r.subStorageDeltas, delta)
	return nil
}

type fakeProjectRepo struct {
	projects map[uint]models.Project
	nextID   uint
}

func newFakeProjectRepo() *fakeProjectRepo {
	return &fakeProjectRepo{projects: map[uint]models.Project{}, nextID: 1}
}

func (r *fakeProjectRepo) Create(_ context.Context, _ *gorm.DB, project *models.Project) error {
	if project.ID == 0 {
		project.ID = r.nextID
		r.nextID++
	}
	r.projects[project.ID] = *project
	return nil
}

func (r *fakeProjectRepo) GetByIDAndUser(_ context.Context, _ *gorm.DB, projectID uint, userID uint) (models.Project, error) {
	project, ok := r.projects[projectID]
	if !ok || project.UserID != userID {
		return models.Project{}, gorm.ErrRecordNotFound
	}
	return project, nil
}

func (r *fakeProjectRepo) GetByNameAndUser(_ context.Context, _ *gorm.DB, name string, userID uint) (models.Project, error) {
	for _, project := range r.projects {
		if project.Name == name && project.UserID == userID {
			return project, nil
		}
	}
	return models.Project{}, gorm.ErrRecordNotFound
}

func (r *fakeProjectRepo) ListByUser(_ context.Context, _ *gorm.DB, userID uint) ([]models.Project, error) {
	var out []models.Project
	for _, project := range r.projects {
		if project.UserID == userID {
			out = append(out, project)
		}
	}
	return out, nil
}

func (r *fakeProjectRepo) CountByNameAndUser(_ context.Context, _ *gorm.DB, name string, userID uint) (int64, error) {
	var count int64
	for _, project := range r.projects {
		if project.Name == name && project.UserID == userID {
			count++
		}
	}
	return count, nil
}

func (r *fakeProjectRepo) SoftDeleteByIDAndUser(_ context.Context, _ *gorm.DB, projectID uint, userID uint) error {
	delete(r.projects, projectID)
	return nil
}

type fakeFolderRepo struct {
	folders map[uint]models.Folder
	nextID  uint
}

func newFakeFolderRepo() *fakeFolderRepo {
	return &fakeFolderRepo{folders: map[uint]models.Folder{}, nextID: 100}
}

func (r *fakeFolderRepo) Create(_ context.Context, _ *gorm.DB, folder *models.Folder) error {
	if folder.ID == 0 {
		folder.ID = r.nextID
		r.nextID++
	}
	r.folders[folder.ID] = *folder
	return nil
}

func (r *fakeFolderRepo) GetByIDAndUser(_ context.Context, _ *gorm.DB, folderID uint, userID uint) (models.Folder, error) {
	folder, ok := r.folders[folderID]
	if !ok || folder.UserID != userID {
		return models.Folder{}, gorm.ErrRecordNotFound
	}
	return folder, nil
}

func (r *fakeFolderRepo) ListByProjectAndParent(_ context.Context, _ *gorm.DB, projectID uint, parentID *uint, userID uint) ([]models.Folder, error) {
	var out []models.Folder
	for _, folder := range r.folders {
		if folder.ProjectID != projectID || folder.UserID != userID {
			continue
		}
		if parentID == nil && folder.ParentID != nil {
			continue
		}
		if parentID != nil && (folder.ParentID == nil || *folder.ParentID != *parentID) {
			continue
		}
		out = append(out, folder)
	}
	return out, nil
}

func (r *fakeFolderRepo) CountByParentAndName(_ context.Context, _ *gorm.DB, projectID uint, parentID *uint, name string, userID uint) (int64, error) {
	list, _ := r.ListByProjectAndParent(context.Background(), nil, projectID, parentID, userID)
	var count int64
	for _, folder := range list {
		if folder.Name == name {
			count++
		}
	}
	return count, nil
}

func (r *fakeFolderRepo) SoftDeleteByIDAndUser(_ context.Context, _ *gorm.DB, folderID uint, userID uint) error {
	delete(r.folders, folderID)
	return nil
}

type fakeFileRepo struct {
	filesByID    map[uint]models.File
	created      []models.File
	updates      []map[string]interface{}
	statuses     map[uint]string
	folderCounts map[uint]int64
	listing      []models.File
	nextID       uint
}

func newFakeFileRepo() *fakeFileRepo {
	return &fakeFileRepo{
		filesByID:    map[uint]models.File{},
		statuses:     map[uint]string{},
		folderCounts: map[uint]int64{},
		nextID:       1,
	}
}

func (r *fakeFileRepo) Create(_ context.Context, _ *gorm.DB, file *models.File) error {
	if file.ID == 0 {
		file.ID = r.nextID
		r.nextID++
	}
	r.filesByID[file.ID] = *file
	r.created = append(r.created, *file)
	return nil
}

func (r *fakeFileRepo) GetByIDAndUser(_ context.Context, _ *gorm.DB, fileID uint, userID uint) (models.File, error) {
	file, ok := r.filesByID[fileID]
	if !ok || file.UserID != userID {
		return models.File{}, gorm.ErrRecordNotFound
	}
	return file, nil
}

func (r *fakeFileRepo) CountByFolder(_ context.Context, _ *gorm.DB, _ uint, _ uint, folderID uint) (int64, error) {
	return r.folderCounts[folderID], nil
}

func (r *fakeFileRepo) CountByFolderAndOriginalName(context.Context, *gorm.DB, uint, uint, uint, string) (int64, error) {
	return 0, nil
}

func (r *fakeFileRepo) ListByFolder(_ context.Context, _ *gorm.DB, in repositories.ListFilesInput) ([]models.File, error) {
	if in.Offset >= len(r.listing) {
		return nil, nil
	}
	end := in.Offset + in.Limit
	if end > len(r.listing) {
		end = len(r.listing)
	}
	return append([]models.File(nil), r.listing[in.Offset:end]...), nil
}

func (r *fakeFileRepo) UpdateByIDAndUser(_ context.Context, _ *gorm.DB, fileID uint, userID uint, updates map[string]interface{}) error {
	file, ok := r.filesByID[fileID]
	if !ok || file.UserID != userID {
		return gorm.ErrRecordNotFound
	}
	if v, ok := updates["name"].(string); ok {
		file.Name = v
	}
	if v, ok := updates["file_path"].(string); ok {
		file.FilePath = v
	}
	if v, ok := updates["file_size"].(int64); ok {
		file.FileSize = v
	}
	if v, ok := updates["mime_type"].(string); ok {
		file.MimeType = v
	}
	if v, ok := updates["processing_status"].(string); ok {
		file.ProcessingStatus = v
	}
	r.filesByID[fileID] = file
	r.updates = append(r.updates, updates)
	return nil
}

func (r *fakeFileRepo) UpdateProcessingStatus(_ context.Context, _ *gorm.DB, fileID uint, status string) error {
	r.statuses[fileID] = status
	if file, ok := r.filesByID[fileID]; ok {
		file.ProcessingStatus = status
		r.filesByID[fileID] = file
	}
	return nil
}

func (r *fakeFileRepo) SoftDeleteByIDAndUser(_ context.Context, _ *gorm.DB, fileID uint, userID uint) error {
	delete(r.filesByID, fileID)
	return nil
}

type fakeChunkRepo struct {
	records map[string][]models.ChunkUpload
	nextID  uint
}

func newFakeChunkRepo() *fakeChunkRepo {
	return &fakeChunkRepo{records: map[string][]models.ChunkUpload{}, nextID: 1}
}

func (r *fakeChunkRepo) Create(_ context.Context, _ *gorm.DB, chunk *models.ChunkUpload) error {
	if chunk.ID == 0 {
		chunk.ID = r.nextID
		r.nextID++
	}
	if chunk.CreatedAt.IsZero() {
		chunk.CreatedAt = time.Now()
	}
	r.records[chunk.UploadKey] = append(r.records[chunk.UploadKey], *chunk)
	return nil
}

func (r *fakeChunkRepo) ListByUploadKey(_ context.Context, _ *gorm.DB, uploadKey string) ([]models.ChunkUpload, error) {
	out := append([]models.ChunkUpload(nil), r.records[uploadKey]...)
	sort.Slice(out, func(i, j int) bool { return out[i].ChunkIndex < out[j].ChunkIndex })
	return out, nil
}

func (r *fakeChunkRepo) CountByUploadKey(_ context.Context, _ *gorm.DB, uploadKey string) (int64, error) {
	return int64(len(r.records[uploadKey])), nil
}

func (r *fakeChunkRepo) GetByUploadKeyAndIndex(_ context.Context, _ *gorm.DB, uploadKey string, chunkIndex int) (models.ChunkUpload, error) {
	for _, record := range r.records[uploadKey] {
		if record.ChunkIndex == chunkIndex {
			return record, nil
		}
	}
	return models.ChunkUpload{}, gorm.ErrRecordNotFound
}

func (r *fakeChunkRepo) DeleteByUploadKey(_ context.Context, _ *gorm.DB, uploadKey string) error {
	delete(r.records, uploadKey)
	return nil
}

func (r *fakeChunkRepo) ListOlderThan(_ context.Context, _ *gorm.DB, cutoff time.Time) ([]models.ChunkUpload, error) {
	var out []models.ChunkUpload
	for _, records := range r.records {
		for _, record := range records {
			if record.CreatedAt.Before(cutoff) {
				out = append(out, record)
			}
		}
	}
	return out, nil
}

func (r *fakeChunkRepo) DeleteByIDs(_ context.Context, _ *gorm.DB, ids []uint) error {
	drop := map[uint]bool{}
	for _, id := range ids {
		drop[id] = true
	}
	for key, records := range r.records {
		kept := records[:0]
		for _, record := range records {
			if !drop[record.ID] {
				kept = append(kept, record)
			}
		}
		if len(kept) == 0 {
			delete(r.records, key)
		} else {
			r.records[key] = kept
		}
	}
	return nil
}

type fakeStatusRepo struct {
	statuses map[uint]string
}

func newFakeStatusRepo() *fakeStatusRepo {
	return &fakeStatusRepo{statuses: map[uint]string{}}
}

func (r *fakeStatusRepo) SetStatus(_ context.Context, fileID uint, status string, _ int) error {
	r.statuses[fileID] = status
	return nil
}

func (r *fakeStatusRepo) GetStatus(_ context.Context, fileID uint) (string, error) {
	return r.statuses[fileID], nil
}

func (r *fakeStatusRepo) Clear(_ context.Context, fileID uint) error {
	delete(r.statuses, fileID)
	return nil
}

type fakeTranscodeQueue struct {
	enqueued []models.File
}

func (q *fakeTranscodeQueue) Enqueue(file models.File) {
	q.enqueued = append(q.enqueued, file)
}

// memChunk 在测试里充当 multipart.File
type memChunk struct {
	*bytes.Reader
}

func newMemChunk(data []byte) memChunk {
	return memChunk{Reader: bytes.NewReader(data)}
}

func (memChunk) Close() error { return nil }
