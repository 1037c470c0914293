package web

import (
	"net/http"
	"strings"

	"github.com/madhesh-litfest/mlf/pkg/content"
	mlferrors "github.com/madhesh-litfest/mlf/pkg/errors"
)

type uploadResponse struct {
	URL string `json:"url"`
}

// handleUpload attaches an image ahead of the form save, the way the form
// preview does: multipart fields collection, name and either image (file)
// or image_url (remote page or image).
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromContext(r.Context())
	if err := s.parseUploadForm(w, r); err != nil {
		respondError(w, 0, err)
		return
	}

	collection := strings.TrimSpace(r.PostFormValue("collection"))
	if collection != content.CollectionSpeakers && collection != content.CollectionPartners {
		respondError(w, http.StatusBadRequest, mlferrors.Validation("Unknown collection").WithContext("collection", collection))
		return
	}
	name := strings.TrimSpace(r.PostFormValue("name"))
	if name == "" {
		respondError(w, http.StatusBadRequest, mlferrors.Validation("Enter a name before adding an image"))
		return
	}

	publicURL, err := s.attachImage(r, sess.Backend, collection, name)
	if err != nil {
		respondError(w, 0, err)
		return
	}
	if publicURL == "" {
		respondError(w, http.StatusBadRequest, mlferrors.Validation("Choose an image file or enter an image URL"))
		return
	}
	respondJSON(w, http.StatusCreated, uploadResponse{URL: publicURL})
}
