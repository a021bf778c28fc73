package usecase

import (
	"math"
	"reflect"
	"testing"
)

func TestPaginate(t *testing.T) {
	items := []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}

	tests := []struct {
		name     string
		items    []int
		size     int
		page     int
		want     []int
		wantPage int
	}{
		{name: "first page", items: items, size: 7, page: 1, want: []int{1, 2, 3, 4, 5, 6, 7}, wantPage: 2},
		{name: "partial last page", items: items, size: 7, page: 2, want: []int{8, 9, 10}, wantPage: 2},
		{name: "past the end", items: items, size: 7, page: 3, want: []int{}, wantPage: 2},
		{name: "exact fit", items: items[:7], size: 7, page: 1, want: items[:7], wantPage: 1},
		{name: "empty input", items: nil, size: 7, page: 1, want: []int{}, wantPage: 0},
		{name: "zero size", items: items, size: 0, page: 1, want: []int{}, wantPage: 0},
		{name: "negative page", items: items, size: 3, page: -1, want: []int{}, wantPage: 4},
		{name: "zero page", items: items, size: 3, page: 0, want: []int{}, wantPage: 4},
		{name: "huge page", items: items, size: 8, page: math.MaxInt/8 + 2, want: []int{}, wantPage: 2},
		{name: "huge page wrapping start", items: items, size: 7, page: math.MaxInt/7 + 3, want: []int{}, wantPage: 2},
		{name: "max page", items: items, size: 7, page: math.MaxInt, want: []int{}, wantPage: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Paginate(tt.items, tt.size, tt.page)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("Paginate = %v, want %v", got, tt.want)
			}
			if n := TotalPages(len(tt.items), tt.size); n != tt.wantPage {
				t.Fatalf("TotalPages = %d, want %d", n, tt.wantPage)
			}
		})
	}
}

func TestPaginateCoversEveryItemOnce(t *testing.T) {
	for n := 0; n <= 30; n++ {
		items := make([]int, n)
		for i := range items {
			items[i] = i
		}
		for size := 1; size <= 9; size++ {
			var joined []int
			for p := 1; p <= TotalPages(n, size); p++ {
				joined = append(joined, Paginate(items, size, p)...)
			}
			if len(joined) != n {
				t.Fatalf("n=%d size=%d: concatenated %d items", n, size, len(joined))
			}
			for i, v := range joined {
				if v != i {
					t.Fatalf("n=%d size=%d: item %d = %d", n, size, i, v)
				}
			}
		}
	}
}

func TestPaginateDoesNotAlias(t *testing.T) {
	items := []int{1, 2, 3}
	page := Paginate(items, 2, 1)
	page[0] = 99
	if items[0] != 1 {
		t.Fatalf("page must not share the input's backing array")
	}
}
