package main

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/lealcafe/ventas_backend/config"
	"github.com/lealcafe/ventas_backend/middlewares"
	"github.com/lealcafe/ventas_backend/models"
	"github.com/lealcafe/ventas_backend/utils"
)

func bindingError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		abortWithError(c, http.StatusBadRequest, "ConfigurationError", errors.New("invalid input"), utils.FormatValidationErrors(err))
		return
	}
	abortWithError(c, http.StatusBadRequest, "ConfigurationError", err, nil)
}

func upsertMonthlyGoalHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewMonthlyGoal
		if err := c.ShouldBindJSON(&input); err != nil {
			bindingError(c, err)
			return
		}

		goal, err := models.UpsertMonthlyGoal(c.Request.Context(), config.GetDB(), config.LoadPeriodConfig(), &input)
		if err != nil {
			var configErr *models.ConfigurationError
			if errors.As(err, &configErr) {
				abortWithError(c, http.StatusBadRequest, "ConfigurationError", err, configErr)
				return
			}
			_ = c.Error(err)
			abortWithError(c, http.StatusInternalServerError, models.ErrorType(err), err, nil)
			return
		}
		c.JSON(http.StatusOK, goal)
	}
}

func listMonthlyGoalsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var filter models.GoalFilter
		if err := c.ShouldBindQuery(&filter); err != nil {
			bindingError(c, err)
			return
		}

		ctx := c.Request.Context()
		goals, err := models.ListMonthlyGoals(ctx, config.GetDB(), filter)
		if err != nil {
			_ = c.Error(err)
			abortWithError(c, http.StatusInternalServerError, "InternalError", err, nil)
			return
		}
		progress, err := middlewares.GoalsProgress(ctx, goals)
		if err != nil {
			_ = c.Error(err)
			abortWithError(c, http.StatusInternalServerError, "InternalError", err, nil)
			return
		}
		c.JSON(http.StatusOK, gin.H{"metas": progress})
	}
}

func deleteMonthlyGoalHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := models.ParseGoalId(c.Param("id"))
		if err == nil {
			err = models.DeactivateMonthlyGoal(c.Request.Context(), config.GetDB(), id)
		}
		if err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				abortWithError(c, http.StatusNotFound, "NotFound", err, nil)
				return
			}
			_ = c.Error(err)
			abortWithError(c, http.StatusInternalServerError, "InternalError", err, nil)
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": id, "activa": false})
	}
}
