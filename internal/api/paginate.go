package api

import (
	"fmt"
	"strconv"
)

const defaultItemsPerPage = 100

func paginateItems[T any](items []T, itemsPerPage int, page int) ([]T, int) {
	if len(items) == 0 {
		return items, 0
	}

	pageCount := len(items) / itemsPerPage
	if (len(items) % itemsPerPage) != 0 {
		pageCount++
	}

	minVal := min(page*itemsPerPage, len(items))
	maxVal := min((page+1)*itemsPerPage, len(items))

	return items[minVal:maxVal], pageCount
}

// paginate returns the requested page of items and the page count.
func paginate[T any](items []T, itemsPerPageStr string, pageStr string) ([]T, int, error) {
	itemsPerPage := defaultItemsPerPage

	if itemsPerPageStr != "" {
		tmp, err := strconv.ParseUint(itemsPerPageStr, 10, 31)
		if err != nil {
			return nil, 0, err
		}
		itemsPerPage = int(tmp)

		if itemsPerPage == 0 {
			return nil, 0, fmt.Errorf("invalid items per page")
		}
	}

	page := 0

	if pageStr != "" {
		tmp, err := strconv.ParseUint(pageStr, 10, 31)
		if err != nil {
			return nil, 0, err
		}
		page = int(tmp)
	}

	items, pageCount := paginateItems(items, itemsPerPage, page)
	return items, pageCount, nil
}
