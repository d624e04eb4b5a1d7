package task

import "overscope/pkg/db/option"

func earliestFirst() option.QueryOption {
	return option.WithSortBy(option.QuerySortBy{OrderBy: "ASC"})
}

func latestFirst() option.QueryOption {
	return option.WithSortBy(option.QuerySortBy{OrderBy: "DESC"})
}
