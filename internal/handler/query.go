package handler

import (
	"fmt"
	"net/url"
	"strconv"

	pkgerrors "github.com/campuspoints/loyalty-service/pkg/errors"
)

func queryBool(values url.Values, key string) (*bool, error) {
	raw := values.Get(key)
	if raw == "" {
		return nil, nil
	}
	parsed, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be a boolean", pkgerrors.ErrInvalidInput, key)
	}
	return &parsed, nil
}

func queryInt32(values url.Values, key string) (*int32, error) {
	raw := values.Get(key)
	if raw == "" {
		return nil, nil
	}
	parsed, err := strconv.ParseInt(raw, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be an integer", pkgerrors.ErrInvalidInput, key)
	}
	v := int32(parsed)
	return &v, nil
}

// queryPage reads page and limit with the usual defaults.
func queryPage(values url.Values) (page, limit int, err error) {
	page, limit = 1, 10
	if raw := values.Get("page"); raw != "" {
		page, err = strconv.Atoi(raw)
		if err != nil || page < 1 {
			return 0, 0, fmt.Errorf("%w: page must be a positive integer", pkgerrors.ErrInvalidInput)
		}
	}
	if raw := values.Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return 0, 0, fmt.Errorf("%w: limit must be a positive integer", pkgerrors.ErrInvalidInput)
		}
	}
	return page, limit, nil
}

func pathID(raw string) (int32, error) {
	parsed, err := strconv.ParseInt(raw, 10, 32)
	if err != nil || parsed < 1 {
		return 0, fmt.Errorf("%w: id must be a positive integer", pkgerrors.ErrInvalidInput)
	}
	return int32(parsed), nil
}
