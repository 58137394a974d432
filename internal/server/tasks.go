package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"kanban/internal/apperr"
	"kanban/internal/models"
)

type addTaskRequest struct {
	Description string `json:"description"`
	ColumnID    int64  `json:"columnId" binding:"required"`
}

type updateTaskRequest struct {
	Description *string `json:"description"`
	ColumnID    *int64  `json:"columnId"`
	Version     *int64  `json:"version"`
}

// handleAddTask inserts a new task into a column.
func (s *Server) handleAddTask(c *gin.Context) {
	var req addTaskRequest
	if !s.bindJSON(c, &req) {
		return
	}

	task, err := s.store.AddTask(c.Request.Context(), currentUserID(c), req.ColumnID, req.Description)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, task)
}

// handleUpdateTask changes the description and/or column of a task.
func (s *Server) handleUpdateTask(c *gin.Context) {
	id, ok := parseID(c, c.Param("id"))
	if !ok {
		return
	}

	var req updateTaskRequest
	if !s.bindJSON(c, &req) {
		return
	}
	if req.ColumnID != nil && *req.ColumnID <= 0 {
		s.respondError(c, apperr.Validationf("invalid column id"))
		return
	}

	task, err := s.store.UpdateTask(c.Request.Context(), currentUserID(c), id, models.TaskUpdate{
		Description: req.Description,
		ColumnID:    req.ColumnID,
		Version:     req.Version,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, task)
}

// handleDeleteTask removes a task completely.
func (s *Server) handleDeleteTask(c *gin.Context) {
	id, ok := parseID(c, c.Param("id"))
	if !ok {
		return
	}
	if err := s.store.DeleteTask(c.Request.Context(), currentUserID(c), id); err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusNoContent, nil)
}
