package handler

import (
	"marketplace-settlement/internal/adapter/http/dto"
	"marketplace-settlement/internal/adapter/http/middleware"
	"marketplace-settlement/internal/core/domain"
	"marketplace-settlement/pkg/apperror"
	"marketplace-settlement/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const defaultPageLimit = 50

// uuidParam parses a path parameter, writing a validation error on failure.
func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.Error(c, apperror.Validation("invalid "+name))
		return uuid.Nil, false
	}
	return id, true
}

// principal returns the authenticated caller, writing 401 when absent.
func principal(c *gin.Context) (domain.Principal, bool) {
	p, ok := middleware.PrincipalFrom(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return domain.Principal{}, false
	}
	return p, true
}

// authorizeOwner allows the owner and admins.
func authorizeOwner(c *gin.Context, p domain.Principal, ownerID uuid.UUID) bool {
	if !p.CanActFor(ownerID) {
		response.Error(c, apperror.ErrForbidden())
		return false
	}
	return true
}

func pageQuery(c *gin.Context) (dto.PageQuery, bool) {
	var q dto.PageQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return q, false
	}
	if q.Limit == 0 {
		q.Limit = defaultPageLimit
	}
	return q, true
}
