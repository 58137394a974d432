package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type addColumnRequest struct {
	Name    string `json:"name" binding:"required"`
	BoardID int64  `json:"boardId" binding:"required"`
}

type renameColumnRequest struct {
	Name string `json:"name" binding:"required"`
}

// handleGetUserBoard returns the caller's board, creating it on first access.
func (s *Server) handleGetUserBoard(c *gin.Context) {
	ctx := c.Request.Context()
	board, err := s.store.GetOrCreateBoard(ctx, currentUserID(c))
	if err != nil {
		s.respondError(c, err)
		return
	}

	view, err := s.store.LoadBoardView(ctx, board)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, view)
}

// handleAddColumn creates a column on the caller's board.
func (s *Server) handleAddColumn(c *gin.Context) {
	var req addColumnRequest
	if !s.bindJSON(c, &req) {
		return
	}

	column, err := s.store.AddColumn(c.Request.Context(), currentUserID(c), req.BoardID, req.Name)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, column)
}

// handleRenameColumn renames the column given by the columnId query parameter.
func (s *Server) handleRenameColumn(c *gin.Context) {
	id, ok := parseID(c, c.Query("columnId"))
	if !ok {
		return
	}

	var req renameColumnRequest
	if !s.bindJSON(c, &req) {
		return
	}

	column, err := s.store.RenameColumn(c.Request.Context(), currentUserID(c), id, req.Name)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, column)
}

// handleDeleteColumn removes a column and all of its tasks.
func (s *Server) handleDeleteColumn(c *gin.Context) {
	id, ok := parseID(c, c.Param("id"))
	if !ok {
		return
	}
	if err := s.store.DeleteColumn(c.Request.Context(), currentUserID(c), id); err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusNoContent, nil)
}
