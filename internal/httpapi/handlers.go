package httpapi

import (
	"context"
	"io"
	"net/http"

	"github.com/alexanderramin/tempo/internal/contract"
	"github.com/alexanderramin/tempo/internal/domain"
	"github.com/gin-gonic/gin"
)

const maxBeaconSize = 4 << 10

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func ownerRef(c *gin.Context) (domain.OwnerRef, bool) {
	kind, err := domain.ParseOwnerKind(c.Param("kind"))
	if err != nil {
		badRequest(c, err.Error())
		return domain.OwnerRef{}, false
	}
	return domain.OwnerRef{Kind: kind, ID: c.Param("id")}, true
}

func (s *Server) handleListOwners(c *gin.Context) {
	kinds := domain.OwnerKinds
	if k := c.Query("kind"); k != "" {
		kind, err := domain.ParseOwnerKind(k)
		if err != nil {
			badRequest(c, err.Error())
			return
		}
		kinds = []domain.OwnerKind{kind}
	}

	resp := contract.OwnerList{Owners: []contract.OwnerDTO{}}
	for _, kind := range kinds {
		owners, err := s.store.ListOwners(c.Request.Context(), kind)
		if err != nil {
			writeError(c, err)
			return
		}
		for _, o := range owners {
			resp.Owners = append(resp.Owners, contract.FromOwner(o))
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleCreateOwner(c *gin.Context) {
	var req contract.CreateOwnerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	owner, err := req.ToDomain()
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	ctx := c.Request.Context()
	if err := s.store.CreateOwner(ctx, owner); err != nil {
		writeError(c, err)
		return
	}
	created, err := s.store.GetOwner(ctx, owner.Ref())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, contract.FromOwner(created))
}

func (s *Server) handleGetOwner(c *gin.Context) {
	ref, ok := ownerRef(c)
	if !ok {
		return
	}
	owner, err := s.store.GetOwner(c.Request.Context(), ref)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, contract.FromOwner(owner))
}

func (s *Server) handleDeleteOwner(c *gin.Context) {
	ref, ok := ownerRef(c)
	if !ok {
		return
	}
	if err := s.store.DeleteOwner(c.Request.Context(), ref); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleStart(c *gin.Context) {
	ref, ok := ownerRef(c)
	if !ok {
		return
	}
	session, err := s.store.StartSession(c.Request.Context(), ref)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, contract.FromSession(*session))
}

func (s *Server) handlePause(c *gin.Context) {
	ref, ok := ownerRef(c)
	if !ok {
		return
	}
	session, err := s.store.PauseSession(c.Request.Context(), ref)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, contract.FromSession(*session))
}

func (s *Server) handleComplete(c *gin.Context) {
	var req contract.CompleteTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if req.HoursWorked < 0 {
		badRequest(c, "hours_worked must not be negative")
		return
	}
	owner, err := s.store.CompleteTask(c.Request.Context(), c.Param("id"), req.CompletedAt, req.HoursWorked)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, contract.FromOwner(owner))
}

// handleBeaconPause always answers 204: the sender is gone and cannot act
// on a failure. Problems are only logged.
func (s *Server) handleBeaconPause(c *gin.Context) {
	defer c.Status(http.StatusNoContent)

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBeaconSize))
	if err != nil {
		s.logger.Debug("beacon read failed", "error", err)
		return
	}
	beacon, err := contract.DecodeBeaconPause(body)
	if err != nil {
		s.logger.Debug("beacon decode failed", "error", err)
		return
	}
	ref, err := beacon.Ref()
	if err != nil {
		s.logger.Debug("beacon rejected", "error", err)
		return
	}
	// The sender may hang up right after writing the body.
	ctx := context.WithoutCancel(c.Request.Context())
	if _, err := s.store.PauseSession(ctx, ref); err != nil {
		s.logger.Debug("beacon pause failed", "owner", ref.String(), "error", err)
		return
	}
	s.logger.Info("beacon pause applied", "owner", ref.String(), "reason", beacon.Reason)
}
