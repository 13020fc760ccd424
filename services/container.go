package services

import "mnas/repositories"

type Container struct {
	Auth    AuthService
	User    UserService
	Project ProjectService
	Folder  FolderService
	File    FileService
	Upload  UploadService
	Video   VideoService
	Stream  StreamService
	Cleanup CleanupService
	Tracker *UploadTracker
}

func NewContainer(repos repositories.Container) *Container {
	tracker := NewUploadTracker()
	video := NewVideoService(
		repos.TxManager, repos.Users, repos.Files, repos.ProcessingStatus,
		NewFFProbeInspector(), NewFFMpegEncoder(), NewNvidiaSmiMonitor(),
	)

	return &Container{
		Auth:    NewAuthService(repos.TxManager, repos.Users, repos.Projects),
		User:    NewUserService(repos.Users),
		Project: NewProjectService(repos.TxManager, repos.Projects),
		Folder:  NewFolderService(repos.TxManager, repos.Projects, repos.Folders, repos.Files),
		File:    NewFileService(repos.TxManager, repos.Users, repos.Projects, repos.Folders, repos.Files, repos.ProcessingStatus, video),
		Upload:  NewUploadService(repos.TxManager, repos.Users, repos.Projects, repos.Folders, repos.Files, repos.Chunks, repos.ProcessingStatus, tracker, video),
		Video:   video,
		Stream:  NewStreamService(repos.Files),
		Cleanup: NewCleanupService(repos.Chunks, tracker),
		Tracker: tracker,
	}
}
