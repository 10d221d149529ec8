package api

import (
	"encoding/json"
	"errors"
	"fitpanel/member-app/internal/annotate"
	"fitpanel/member-app/internal/service"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// MeasurementHandler exposes a customer's measurement history and plan
// document uploads.
type MeasurementHandler struct {
	measurements service.MeasurementService
	lifecycle    service.LifecycleService
}

// NewMeasurementHandler creates a new MeasurementHandler.
func NewMeasurementHandler(measurements service.MeasurementService, lifecycle service.LifecycleService) *MeasurementHandler {
	return &MeasurementHandler{measurements: measurements, lifecycle: lifecycle}
}

// List returns the full ordered measurement history, possibly empty.
func (h *MeasurementHandler) List(c *gin.Context) {
	entries, err := h.measurements.List(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondLifecycleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"measurements": entries})
}

// Append adds one measurement entry. The multipart form carries a
// "measurements" JSON object of name->value pairs plus any number of image
// files under "images".
func (h *MeasurementHandler) Append(c *gin.Context) {
	raw := c.PostForm("measurements")
	if raw == "" {
		abortWithError(c, http.StatusBadRequest, "measurements form field is required")
		return
	}

	var fields map[string]float64
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Invalid measurements payload: %v", err))
		return
	}

	images, err := readFormFiles(c, "images")
	if err != nil {
		abortWithError(c, http.StatusBadRequest, err.Error())
		return
	}

	entries, err := h.measurements.Append(c.Request.Context(), c.Param("id"), fields, images)
	if err != nil {
		respondLifecycleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Measurement added successfully", "measurements": entries})
}

// DeleteAt removes the entry at the given position; later entries shift down.
func (h *MeasurementHandler) DeleteAt(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "index must be an integer")
		return
	}

	entries, err := h.measurements.DeleteAt(c.Request.Context(), c.Param("id"), index)
	if err != nil {
		if errors.Is(err, service.ErrIndexOutOfRange) {
			abortWithError(c, http.StatusBadRequest, err.Error())
			return
		}
		respondLifecycleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Measurement deleted successfully", "measurements": entries})
}

// UploadPlans annotates and stores whichever of the training/food plan PDFs
// was supplied.
func (h *MeasurementHandler) UploadPlans(c *gin.Context) {
	ownerName := c.PostForm("ownerName")
	if ownerName == "" {
		abortWithError(c, http.StatusBadRequest, "ownerName form field is required")
		return
	}

	trainingBytes, _, err := readFormFile(c, "trainingPlan")
	if err != nil {
		abortWithError(c, http.StatusBadRequest, err.Error())
		return
	}
	foodBytes, _, err := readFormFile(c, "foodPlan")
	if err != nil {
		abortWithError(c, http.StatusBadRequest, err.Error())
		return
	}
	if len(trainingBytes) == 0 && len(foodBytes) == 0 {
		abortWithError(c, http.StatusBadRequest, "at least one plan file is required")
		return
	}

	account, err := h.lifecycle.UploadPlanDocuments(c.Request.Context(), c.Param("id"), ownerName, trainingBytes, foodBytes)
	if err != nil {
		if errors.Is(err, annotate.ErrMalformedDocument) {
			abortWithError(c, http.StatusUnprocessableEntity, err.Error())
			return
		}
		respondLifecycleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Plans uploaded and saved", "account": MapAccountToResponse(account)})
}

// readFormFiles buffers every uploaded file under a repeated multipart field.
func readFormFiles(c *gin.Context, field string) ([][]byte, error) {
	form, err := c.MultipartForm()
	if err != nil {
		if errors.Is(err, http.ErrNotMultipart) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading multipart form: %w", err)
	}

	var out [][]byte
	for _, fileHeader := range form.File[field] {
		if fileHeader.Size > maxUploadBytes {
			return nil, fmt.Errorf("%s exceeds the %d byte upload limit", fileHeader.Filename, maxUploadBytes)
		}
		f, err := fileHeader.Open()
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", fileHeader.Filename, err)
		}
		data, err := io.ReadAll(io.LimitReader(f, maxUploadBytes))
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", fileHeader.Filename, err)
		}
		out = append(out, data)
	}
	return out, nil
}
