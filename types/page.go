/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package types

import (
	"net/url"
	"strconv"
)

// QueryFilter describes a raw WHERE fragment and its argument values.
type QueryFilter struct {
	Schema string
	Args   []interface{}
}

// NewQueryFilter creates a new query filter with schema and args.
func NewQueryFilter(schema string, args ...interface{}) *QueryFilter {
	return &QueryFilter{schema, args}
}

// PageRequest describes the page being requested and its size.
type PageRequest struct {
	page     int
	pageSize int
}

func (p *PageRequest) GetPageSize() int {
	if p.pageSize < 1 {
		p.pageSize = 10
	}
	return p.pageSize
}

func (p *PageRequest) GetPage() int {
	if p.page < 1 {
		p.page = 1
	}
	return p.page
}

func (p *PageRequest) GetOffset() int {
	return (p.GetPage() - 1) * p.GetPageSize()
}

// NewPageRequest constructs a PageRequest.
func NewPageRequest(page int, pageSize int) *PageRequest {
	return &PageRequest{page, pageSize}
}

// Pagination holds one page of items along with the metadata needed to link
// to its neighbours.
type Pagination[T any] struct {
	Page     int        `json:"current_page"`
	PageSize int        `json:"per_page"`
	Total    int        `json:"total"`
	Items    []*T       `json:"data"`
	Path     string     `json:"path"`
	Query    url.Values `json:"-"`
}

// NewDefaultPagination constructs an empty pagination container.
func NewDefaultPagination[T any](page int, pageSize int) *Pagination[T] {
	return &Pagination[T]{Page: page, PageSize: pageSize, Items: make([]*T, 0)}
}

// LastPage is never lower than 1, even for an empty result.
func (p *Pagination[T]) LastPage() int {
	if p.PageSize < 1 || p.Total <= p.PageSize {
		return 1
	}
	return (p.Total + p.PageSize - 1) / p.PageSize
}

func (p *Pagination[T]) HasMorePages() bool {
	return p.Page < p.LastPage()
}

// URL builds the link to page, keeping the current query string.
func (p *Pagination[T]) URL(page int) string {
	if page < 1 {
		page = 1
	}
	q := url.Values{}
	for k, v := range p.Query {
		q[k] = append([]string(nil), v...)
	}
	q.Set("page", strconv.Itoa(page))
	return p.Path + "?" + q.Encode()
}

// NextPageURL is empty on the last page.
func (p *Pagination[T]) NextPageURL() string {
	if !p.HasMorePages() {
		return ""
	}
	return p.URL(p.Page + 1)
}

// PreviousPageURL is empty on the first page.
func (p *Pagination[T]) PreviousPageURL() string {
	if p.Page <= 1 {
		return ""
	}
	return p.URL(p.Page - 1)
}

// Paginate slices an in-memory result set the same way a paginated query
// would.
func Paginate[T any](items []*T, page int, perPage int) *Pagination[T] {
	req := NewPageRequest(page, perPage)
	pagination := NewDefaultPagination[T](req.GetPage(), req.GetPageSize())
	pagination.Total = len(items)
	start := req.GetOffset()
	if start >= len(items) {
		return pagination
	}
	end := start + req.GetPageSize()
	if end > len(items) {
		end = len(items)
	}
	pagination.Items = append(pagination.Items, items[start:end]...)
	return pagination
}
