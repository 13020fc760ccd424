package services

import (
	"context"
	"net/http"
	"testing"

	"mnas/models"
)

func TestProjectServiceCreateAndDuplicate(t *testing.T) {
	projects := newFakeProjectRepo()
	svc := NewProjectService(fakeTxManager{}, projects)

	created, err := svc.CreateProject(context.Background(), 1, CreateProjectInput{Name: "vacation", Description: "假期素材"})
	if err != nil {
		t.Fatalf("创建项目失败: %v", err)
	}
	if created.ID == 0 || created.UserID != 1 {
		t.Fatalf("项目 = %+v", created)
	}

	_, err = svc.CreateProject(context.Background(), 1, CreateProjectInput{Name: "vacation"})
	appErr, ok := err.(*AppError)
	if !ok || appErr.HTTPCode != http.StatusBadRequest {
		t.Fatalf("同名项目 err = %v, 期望 400", err)
	}

	// 不同用户可以重名。
	if _, err := svc.CreateProject(context.Background(), 2, CreateProjectInput{Name: "vacation"}); err != nil {
		t.Fatalf("跨用户同名创建失败: %v", err)
	}

	_, err = svc.CreateProject(context.Background(), 1, CreateProjectInput{Name: ""})
	appErr, ok = err.(*AppError)
	if !ok || appErr.HTTPCode != http.StatusBadRequest {
		t.Fatalf("空名称 err = %v, 期望 400", err)
	}
}

func TestProjectServiceOwnership(t *testing.T) {
	projects := newFakeProjectRepo()
	projects.projects[1] = models.Project{ID: 1, UserID: 1, Name: "mine"}
	svc := NewProjectService(fakeTxManager{}, projects)

	if _, err := svc.GetProject(context.Background(), 1, 1); err != nil {
		t.Fatalf("查询自己的项目失败: %v", err)
	}

	_, err := svc.GetProject(context.Background(), 2, 1)
	appErr, ok := err.(*AppError)
	if !ok || appErr.HTTPCode != http.StatusNotFound {
		t.Fatalf("跨用户查询 err = %v, 期望 404", err)
	}

	err = svc.DeleteProject(context.Background(), 2, 1)
	appErr, ok = err.(*AppError)
	if !ok || appErr.HTTPCode != http.StatusNotFound {
		t.Fatalf("跨用户删除 err = %v, 期望 404", err)
	}
	if err := svc.DeleteProject(context.Background(), 1, 1); err != nil {
		t.Fatalf("删除失败: %v", err)
	}
}
