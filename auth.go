package main

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lealcafe/ventas_backend/config"
	"github.com/lealcafe/ventas_backend/models"
	"github.com/lealcafe/ventas_backend/utils"
)

func loginHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.LoginInput
		if err := c.ShouldBindJSON(&input); err != nil {
			bindingError(c, err)
			return
		}
		info, err := models.Login(c.Request.Context(), config.GetDB(), input.Username, input.Password)
		if err != nil {
			if errors.Is(err, utils.ErrorInvalidLogin) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
				return
			}
			_ = c.Error(err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, info)
	}
}

func logoutHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := models.Logout(c.Request.Context()); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}
